package service

import (
	_ "embed"
	"encoding/json"
	"regexp"
	"strings"
)

//go:embed motifs_bcc.json
var motifsBCCData []byte

// defaultMotifBCC is written into documents whose complaint type has no
// entry in the mapping table.
const defaultMotifBCC = "Renforcement de la sécurité des identités"

var spaceRun = regexp.MustCompile(`\s+`)

// MotifResolver maps a complaint type to the corresponding BCC motif label
// required by the regulator-facing document.
type MotifResolver struct {
	mapping map[string]string
}

// NewMotifResolver loads the embedded type-to-motif table.
func NewMotifResolver() (*MotifResolver, error) {
	raw := map[string]string{}
	if err := json.Unmarshal(motifsBCCData, &raw); err != nil {
		return nil, err
	}
	mapping := make(map[string]string, len(raw))
	for k, v := range raw {
		key := sanitizeMotifKey(k)
		val := sanitizeMotifKey(v)
		if key != "" && val != "" {
			mapping[key] = val
		}
	}
	return &MotifResolver{mapping: mapping}, nil
}

// Resolve returns the BCC motif for a complaint type, or the default label
// when the type is unknown.
func (r *MotifResolver) Resolve(complaintType string) string {
	if motif, ok := r.mapping[sanitizeMotifKey(complaintType)]; ok {
		return motif
	}
	return defaultMotifBCC
}

// sanitizeMotifKey normalizes the typographic variants the table sources
// tend to contain: non-breaking spaces, long dashes, curly apostrophes.
func sanitizeMotifKey(s string) string {
	replacer := strings.NewReplacer(
		" ", " ",
		" ", " ",
		" ", " ",
		"–", "-",
		"—", "-",
		"’", "'",
	)
	return strings.TrimSpace(spaceRun.ReplaceAllString(replacer.Replace(s), " "))
}
