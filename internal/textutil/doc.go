// Package textutil provides filename and folder-name sanitization shared by
// the plan builder and the categorization service client.
package textutil
