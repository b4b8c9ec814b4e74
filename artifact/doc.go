// Package artifact describes the output files produced by a single
// generation run.
//
// A Descriptor records where an output goes (directory, file name, target
// project), how it is written (encoding) and how it joins the workspace
// (item type, custom tool, metadata, references). Its content is an
// append-only buffer that grows as the renderer writes to it.
//
// # Default output
//
// A descriptor with an empty file name is the default output: the text the
// template produces inline. It cannot be moved or preserved:
//
//	d := artifact.New("")
//	d.Directory = "Generated"
//	err := d.Validate() // errors.Is(err, artifact.ErrDefaultOutputMisuse)
//
// # Identity
//
// Two descriptors refer to the same artifact when their paths compare equal
// ignoring case. Use Key to build map keys.
package artifact
