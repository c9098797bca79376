// Package models contains data types shared by the file service and its clients.
package models

// FileEntry is a single file known to the client. The filename is its only attribute.
type FileEntry struct {
	Name string `json:"name"`
}

// String returns the filename.
func (e FileEntry) String() string { return e.Name }

// EntriesFromNames converts a list of filenames into entries, preserving order.
func EntriesFromNames(names []string) []FileEntry {
	entries := make([]FileEntry, len(names))
	for i, name := range names {
		entries[i] = FileEntry{Name: name}
	}
	return entries
}

// Names returns the filenames of entries, preserving order.
func Names(entries []FileEntry) []string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}
