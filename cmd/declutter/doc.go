// Command declutter organizes a directory of loose files into category
// folders and can undo what it did.
//
//	declutter organize ~/Downloads --dry-run
//	declutter undo
//	declutter status
package main
