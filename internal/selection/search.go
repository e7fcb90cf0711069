package selection

import (
	"strings"
	"time"

	"briefboard/internal/models"
	"briefboard/internal/util"
)

type SearchOption struct {
	Label   string               `json:"label" yaml:"label"`
	Snippet string               `json:"snippet,omitempty" yaml:"snippet,omitempty"`
	Record  models.SummaryRecord `json:"record" yaml:"record"`
}

func Label(rec models.SummaryRecord) string {
	created := ""
	if !rec.CreatedAt.IsZero() {
		created = rec.CreatedAt.Format(time.RFC3339)
	}
	return rec.Filename + " — " + created + " — " + rec.ModelName
}

// Search returns the records whose label or model contains term, case
// insensitive. An empty term yields no options.
func Search(records []models.SummaryRecord, term string) []SearchOption {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []SearchOption{}
	}
	out := make([]SearchOption, 0)
	for _, rec := range records {
		label := Label(rec)
		if !strings.Contains(strings.ToLower(label), term) && !strings.Contains(strings.ToLower(rec.ModelName), term) {
			continue
		}
		out = append(out, SearchOption{
			Label:   label,
			Snippet: util.MatchSnippet(rec.Summary(), term, 160),
			Record:  rec,
		})
	}
	return out
}

func (r *Resolver) SetSearchTerm(term string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchTerm = term
}

func (r *Resolver) SearchTerm() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.searchTerm
}

// SearchOptions applies the current search term to records.
func (r *Resolver) SearchOptions(records []models.SummaryRecord) []SearchOption {
	return Search(records, r.SearchTerm())
}

// SelectSearchResult selects the chosen option and clears the search term.
func (r *Resolver) SelectSearchResult(rec models.SummaryRecord) error {
	if err := r.Select(rec); err != nil {
		return err
	}
	r.SetSearchTerm("")
	return nil
}
