package text

// Preprocess turns raw text into the ordered sentences worth speaking. The
// order matters: filtering must see normalized, segmented sentences, since
// a raw string with a code block has a very different letter ratio than the
// prose left once the block is gone.
func Preprocess(raw string) []string {
	return PreprocessWith(NewSegmenter(defaultLanguage), raw)
}

// PreprocessWith is Preprocess using the given segmenter.
func PreprocessWith(seg *Segmenter, raw string) []string {
	sentences := seg.Segment(Normalize(raw))
	speakable := sentences[:0]
	for _, s := range sentences {
		if IsSpeakable(s) {
			speakable = append(speakable, s)
		}
	}
	return speakable
}
