// Package textutil provides text sanitization helpers for natural keys and
// filesystem paths.
//
// Natural keys and cache directory names are derived from external clip
// identifiers, which may contain characters unsafe for filenames or URL path
// segments. SanitizeToken produces the lowercase slug form used for natural
// keys; SanitizeFileName keeps human-readable names safe for local artifact
// directories.
package textutil
