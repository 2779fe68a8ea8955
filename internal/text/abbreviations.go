package text

// abbreviations holds the lower-cased words of one language that may end
// with a period without ending the sentence.
type abbreviations struct {
	// titles never end a sentence: "Dr. Smith", "e.g. Python".
	titles map[string]bool
	// numeric only hold when a number follows: "No. 5", "p. 12". Before a
	// capitalised word they end the sentence like any other word.
	numeric map[string]bool
}

var abbreviationTables = map[string]abbreviations{
	"en": {
		titles: set(
			"mr", "mrs", "ms", "dr", "prof", "sr", "jr", "st", "mt", "rev",
			"hon", "gen", "col", "capt", "lt", "sgt", "gov", "sen", "rep",
			"e.g", "i.e", "vs", "cf", "viz",
		),
		numeric: set(
			"fig", "figs", "no", "nos", "vol", "vols", "ch", "sec", "pp", "p",
			"eq", "ref", "est", "approx", "ca", "al",
			"jan", "feb", "mar", "apr", "jun", "jul", "aug", "sep", "sept",
			"oct", "nov", "dec",
		),
	},
	"de": {
		titles: set(
			"hr", "fr", "dr", "prof", "bzw", "ca", "vgl", "z.b", "d.h", "u.a",
			"evtl", "ggf", "inkl", "bspw",
		),
		numeric: set("str", "nr", "abs", "s"),
	},
	"fr": {
		titles:  set("m", "mm", "mme", "mlle", "dr", "pr", "st", "ste", "p.ex", "cf", "av", "bd"),
		numeric: set("no", "vol", "p", "env"),
	},
	"es": {
		titles:  set("sr", "sra", "srta", "dr", "dra", "ud", "uds", "p.ej", "cf", "av"),
		numeric: set("pág", "núm", "aprox"),
	},
}

func set(words ...string) map[string]bool {
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[w] = true
	}
	return m
}
