// Package buffer resolves buffer names to files inside the mirror and appends
// to them while keeping them encrypted at rest.
//
// # Names
//
// A fixed set of categories (places, todo, ideas, journal, books, movies,
// music, quotes, links, recipes, shopping, work) map to <category>.txt.
// Everything else goes to unsorted/<DD-Mon-YY:HH-MM>.txt.
//
// # Append
//
//	decrypt (if the file exists) -> append "\n<text>\n" -> encrypt
//
// The encrypt step always runs once the file exists, is retried
// encrypt_retries times and is not cancelled with the request.
package buffer
