package buffer

import (
	"path"
	"strings"
	"time"
)

// UnsortedDir holds buffers whose name is not a known category.
const UnsortedDir = "unsorted"

// OverflowLayout names unsorted buffers, e.g. 07-Mar-25:14-05.
const OverflowLayout = "02-Jan-06:15-04"

var categories = map[string]string{
	"places":   "places.txt",
	"todo":     "todo.txt",
	"ideas":    "ideas.txt",
	"journal":  "journal.txt",
	"books":    "books.txt",
	"movies":   "movies.txt",
	"music":    "music.txt",
	"quotes":   "quotes.txt",
	"links":    "links.txt",
	"recipes":  "recipes.txt",
	"shopping": "shopping.txt",
	"work":     "work.txt",
}

// Categories returns the known category names.
func Categories() []string {
	names := make([]string, 0, len(categories))
	for name := range categories {
		names = append(names, name)
	}
	return names
}

// ResolveName maps a buffer name to a slash-separated path relative to the
// buffer directory. Known categories match case-insensitively after trimming.
// Anything else lands in UnsortedDir under a name built from now; two unknown
// names resolved in the same minute share a file.
func ResolveName(name string, now time.Time) string {
	if file, ok := categories[strings.ToLower(strings.TrimSpace(name))]; ok {
		return file
	}
	return path.Join(UnsortedDir, now.Format(OverflowLayout)+".txt")
}
