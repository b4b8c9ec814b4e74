// Package filesystem finds templates in a solution tree.
//
// Walk traverses a directory with the usual build and tool directories
// skipped:
//
//	err := filesystem.Walk(fs, ".", filesystem.WalkOptions{
//	    IgnorePatterns: []string{"*.generated.tt"},
//	}, func(path string, info os.FileInfo) error {
//	    fmt.Println(path)
//	    return nil
//	})
//
// FindTemplates collects the files matching template patterns:
//
//	templates, err := filesystem.FindTemplates(fs, root, filesystem.TemplateOptions{})
package filesystem
