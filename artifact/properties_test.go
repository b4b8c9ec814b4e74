package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProperties_TwoTiers(t *testing.T) {
	var p Properties
	p.Set(KeyItemType, "Compile")
	p.Set(KeyCustomTool, "ResXFileCodeGenerator")
	p.Set("DependentUpon", "Foo.tt")
	p.Set("AutoGen", "True")

	assert.Equal(t, "Compile", p.ItemType)
	assert.Equal(t, "ResXFileCodeGenerator", p.CustomTool)
	assert.Equal(t, []string{KeyItemType, KeyCustomTool, "AutoGen", "DependentUpon"}, p.Keys())
	assert.Equal(t, []string{"AutoGen", "DependentUpon"}, p.MetadataKeys())

	_, ok := p.Get(KeyCustomToolNamespace)
	assert.False(t, ok)
	assert.True(t, IsWellKnown(KeyCustomToolNamespace))
	assert.False(t, IsWellKnown("AutoGen"))
}

func TestProperties_MergeFirstWriteWins(t *testing.T) {
	var first, second Properties
	first.Set("A", "1")
	second.Set("A", "2")
	second.Set("B", "3")
	second.Set(KeyItemType, "Content")

	first.Merge(&second)

	a, _ := first.Get("A")
	b, _ := first.Get("B")
	assert.Equal(t, "1", a)
	assert.Equal(t, "3", b)
	assert.Equal(t, "Content", first.ItemType)
}
