package services

import (
	"context"
	"sort"
	"strings"

	"github.com/go-faster/errors"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/citation"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/cultivar"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/site"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/modules/catalog/domain/entities/treatment"
	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
)

// resolveCandidateLimit caps the fuzzy candidate list shown to the user.
const resolveCandidateLimit = 10

var ErrUnknownKind = errors.New("unknown catalog kind")

// ResolverService matches free-text references against the catalog.
// Exact name matches always win over fuzzy ones; several equally exact
// matches are reported as ambiguous rather than silently picking one.
type ResolverService struct {
	sites      site.Repository
	species    species.Repository
	citations  citation.Repository
	cultivars  cultivar.Repository
	treatments treatment.Repository
}

func NewResolverService(
	sites site.Repository,
	speciesRepo species.Repository,
	citations citation.Repository,
	cultivars cultivar.Repository,
	treatments treatment.Repository,
) *ResolverService {
	return &ResolverService{
		sites:      sites,
		species:    speciesRepo,
		citations:  citations,
		cultivars:  cultivars,
		treatments: treatments,
	}
}

func (s *ResolverService) Resolve(ctx context.Context, kind resolve.Kind, query string) (resolve.Resolution, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return resolve.NotFound(kind, query), nil
	}

	exact, err := s.findExact(ctx, kind, query)
	if err != nil {
		return resolve.Resolution{}, err
	}
	if len(exact) == 1 {
		return resolve.Unique(kind, query, exact[0].ID, exact[0].Label), nil
	}
	if len(exact) > 1 {
		return resolve.Ambiguous(kind, query, exact), nil
	}

	found, err := s.search(ctx, kind, query, resolveCandidateLimit)
	if err != nil {
		return resolve.Resolution{}, err
	}
	switch len(found) {
	case 0:
		return resolve.NotFound(kind, query), nil
	case 1:
		return resolve.Unique(kind, query, found[0].ID, found[0].Label), nil
	default:
		return resolve.Ambiguous(kind, query, rankCandidates(query, found)), nil
	}
}

// ResolveAll resolves each distinct input once. Inputs that only differ
// in surrounding whitespace share a resolution keyed by the trimmed form.
func (s *ResolverService) ResolveAll(ctx context.Context, kind resolve.Kind, inputs []string) (map[string]resolve.Resolution, error) {
	results := make(map[string]resolve.Resolution, len(inputs))
	for _, input := range inputs {
		key := strings.TrimSpace(input)
		if _, done := results[key]; done {
			continue
		}
		resolution, err := s.Resolve(ctx, kind, key)
		if err != nil {
			return nil, err
		}
		results[key] = resolution
	}
	return results, nil
}

func (s *ResolverService) findExact(ctx context.Context, kind resolve.Kind, query string) ([]resolve.Candidate, error) {
	switch kind {
	case resolve.KindSite:
		found, err := s.sites.FindByExactName(ctx, query)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.Name()})
		}
		return candidates, nil
	case resolve.KindSpecies:
		found, err := s.species.FindByExactName(ctx, query)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.ScientificName()})
		}
		return candidates, nil
	case resolve.KindCitation:
		return s.findExactCitation(ctx, query)
	case resolve.KindCultivar:
		found, err := s.cultivars.FindByExactName(ctx, 0, query)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.Name()})
		}
		return candidates, nil
	case resolve.KindTreatment:
		found, err := s.treatments.FindByExactName(ctx, query)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.Name()})
		}
		return candidates, nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
}

// findExactCitation tries the DOI first since DOIs are globally unique,
// then falls back to the "Author Year Title" label.
func (s *ResolverService) findExactCitation(ctx context.Context, query string) ([]resolve.Candidate, error) {
	if strings.HasPrefix(query, "10.") && strings.Contains(query, "/") {
		found, err := s.citations.FindByDOI(ctx, query)
		if err != nil && !errors.Is(err, citation.ErrNotFound) {
			return nil, err
		}
		if found != nil {
			return []resolve.Candidate{{ID: found.ID(), Label: found.Label()}}, nil
		}
	}
	found, err := s.citations.FindByExactName(ctx, query)
	if err != nil {
		return nil, err
	}
	candidates := make([]resolve.Candidate, 0, len(found))
	for _, e := range found {
		candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.Label()})
	}
	return candidates, nil
}

func (s *ResolverService) search(ctx context.Context, kind resolve.Kind, query string, limit int) ([]resolve.Candidate, error) {
	switch kind {
	case resolve.KindSite:
		found, err := s.sites.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.Name()})
		}
		return candidates, nil
	case resolve.KindSpecies:
		found, err := s.species.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.ScientificName()})
		}
		return candidates, nil
	case resolve.KindCitation:
		found, err := s.citations.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.Label()})
		}
		return candidates, nil
	case resolve.KindCultivar:
		found, err := s.cultivars.Search(ctx, 0, query, limit)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.Name()})
		}
		return candidates, nil
	case resolve.KindTreatment:
		found, err := s.treatments.Search(ctx, query, limit)
		if err != nil {
			return nil, err
		}
		candidates := make([]resolve.Candidate, 0, len(found))
		for _, e := range found {
			candidates = append(candidates, resolve.Candidate{ID: e.ID(), Label: e.Name()})
		}
		return candidates, nil
	}
	return nil, errors.Wrapf(ErrUnknownKind, "%q", kind)
}

// rankCandidates orders candidates by fuzzy edit distance to the query.
// Candidates the fuzzy matcher rejects (possible when the stored search
// matched a secondary column) keep their storage order at the tail.
func rankCandidates(query string, candidates []resolve.Candidate) []resolve.Candidate {
	words := make([]string, len(candidates))
	for i, c := range candidates {
		words[i] = c.Label
	}
	ranks := fuzzy.RankFindNormalizedFold(query, words)
	sort.Sort(ranks)

	ranked := make([]resolve.Candidate, 0, len(candidates))
	seen := make([]bool, len(candidates))
	for _, rank := range ranks {
		c := candidates[rank.OriginalIndex]
		c.Score = rank.Distance
		ranked = append(ranked, c)
		seen[rank.OriginalIndex] = true
	}
	for i, c := range candidates {
		if !seen[i] {
			c.Score = len(c.Label)
			ranked = append(ranked, c)
		}
	}
	return ranked
}
