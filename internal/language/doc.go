// Package language holds the table of recognized target languages and
// normalizes user input (codes, names, region variants) to table codes.
package language
