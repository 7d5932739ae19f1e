// Package loader reads books and subtitles into an ordered sequence of
// translatable units and renders them back into the same container format.
//
// Three formats are supported: plain text (one unit per non-blank line),
// SubRip subtitles (one unit per cue) and EPUB (one unit per block element
// of the spine documents). Everything that is not a unit is kept as it was
// read, so a rendered document differs from its source only where units
// carry a translation.
package loader
