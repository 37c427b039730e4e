package index

import "strings"

const (
	defaultChunkSize    = 800
	defaultChunkOverlap = 100
)

// separators is the split cascade, tried in order from coarsest to finest.
var separators = []string{"\n\n", "\n", ". ", " ", ""}

// splitText breaks text into chunks of at most chunkSize characters with
// chunkOverlap characters carried between adjacent chunks. It prefers
// splitting at paragraph boundaries, then lines, then sentences, then
// words, falling back to a hard character split only for unbroken runs.
func splitText(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = defaultChunkOverlap
	}
	pieces := splitRecursive(text, chunkSize, separators)
	return mergePieces(pieces, chunkSize, chunkOverlap)
}

func splitRecursive(text string, chunkSize int, seps []string) []string {
	if len(text) <= chunkSize {
		if strings.TrimSpace(text) == "" {
			return nil
		}
		return []string{text}
	}

	sep := seps[0]
	rest := seps[1:]

	if sep == "" {
		// Hard split for text with no usable separator.
		var out []string
		for len(text) > chunkSize {
			out = append(out, text[:chunkSize])
			text = text[chunkSize:]
		}
		if strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
		return out
	}

	parts := strings.Split(text, sep)
	var out []string
	for i, part := range parts {
		if i < len(parts)-1 {
			part += sep
		}
		if len(part) > chunkSize {
			out = append(out, splitRecursive(part, chunkSize, rest)...)
		} else if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

// mergePieces packs small pieces back together up to chunkSize, carrying
// a tail of the previous chunk into the next one as overlap.
func mergePieces(pieces []string, chunkSize, chunkOverlap int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, piece := range pieces {
		if current.Len()+len(piece) > chunkSize && current.Len() > 0 {
			prev := current.String()
			flush()
			if chunkOverlap > 0 && len(prev) > chunkOverlap {
				current.WriteString(prev[len(prev)-chunkOverlap:])
			}
		}
		current.WriteString(piece)
	}
	flush()

	return chunks
}
