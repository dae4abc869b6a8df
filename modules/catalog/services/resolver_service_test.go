package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agrovault/trialbase/modules/catalog/domain/entities/species"
	"github.com/agrovault/trialbase/modules/catalog/domain/resolve"
)

type mockSpeciesRepo struct {
	exact      []*species.Species
	search     []*species.Species
	err        error
	exactCalls int
	searchCall int
}

func (m *mockSpeciesRepo) Count(ctx context.Context) (int64, error) {
	return int64(len(m.search)), nil
}

func (m *mockSpeciesRepo) GetAll(ctx context.Context) ([]*species.Species, error) {
	return m.search, nil
}

func (m *mockSpeciesRepo) GetByID(ctx context.Context, id int64) (*species.Species, error) {
	return nil, species.ErrNotFound
}

func (m *mockSpeciesRepo) FindByExactName(ctx context.Context, name string) ([]*species.Species, error) {
	m.exactCalls++
	if m.err != nil {
		return nil, m.err
	}
	return m.exact, nil
}

func (m *mockSpeciesRepo) Search(ctx context.Context, fragment string, limit int) ([]*species.Species, error) {
	m.searchCall++
	if m.err != nil {
		return nil, m.err
	}
	if limit < len(m.search) {
		return m.search[:limit], nil
	}
	return m.search, nil
}

func (m *mockSpeciesRepo) Create(ctx context.Context, data *species.Species) (*species.Species, error) {
	return data, nil
}

func (m *mockSpeciesRepo) GetOrCreate(ctx context.Context, data *species.Species) (*species.Species, error) {
	return data, nil
}

func newSpecies(id int64, scientificName string) *species.Species {
	now := time.Now()
	return species.Hydrate(id, scientificName, "", "", now, now)
}

func newResolver(repo species.Repository) *ResolverService {
	return NewResolverService(nil, repo, nil, nil, nil)
}

func TestResolverService_ExactMatchWinsOverFuzzy(t *testing.T) {
	repo := &mockSpeciesRepo{
		exact: []*species.Species{newSpecies(1, "Zea mays")},
		search: []*species.Species{
			newSpecies(1, "Zea mays"),
			newSpecies(2, "Zea mays subsp. mexicana"),
		},
	}
	svc := newResolver(repo)

	res, err := svc.Resolve(context.Background(), resolve.KindSpecies, "Zea mays")
	require.NoError(t, err)
	require.Equal(t, resolve.StatusUnique, res.Status)
	require.Equal(t, int64(1), res.Match.ID)
	require.Zero(t, repo.searchCall, "fuzzy search should not run when an exact match exists")
}

func TestResolverService_ExactMatchIsCaseInsensitiveInput(t *testing.T) {
	repo := &mockSpeciesRepo{
		exact: []*species.Species{newSpecies(7, "Zea mays")},
	}
	svc := newResolver(repo)

	res, err := svc.Resolve(context.Background(), resolve.KindSpecies, "  zEA MAYS  ")
	require.NoError(t, err)
	require.Equal(t, resolve.StatusUnique, res.Status)
	require.Equal(t, int64(7), res.Match.ID)
	require.Equal(t, "Zea mays", res.Match.Label)
}

func TestResolverService_DuplicateExactIsAmbiguous(t *testing.T) {
	repo := &mockSpeciesRepo{
		exact: []*species.Species{
			newSpecies(1, "Festuca rubra"),
			newSpecies(2, "Festuca Rubra"),
		},
	}
	svc := newResolver(repo)

	res, err := svc.Resolve(context.Background(), resolve.KindSpecies, "festuca rubra")
	require.NoError(t, err)
	require.Equal(t, resolve.StatusAmbiguous, res.Status)
	require.Len(t, res.Candidates, 2)
	require.Nil(t, res.Match)
}

func TestResolverService_SingleFuzzyHitIsUnique(t *testing.T) {
	repo := &mockSpeciesRepo{
		search: []*species.Species{newSpecies(3, "Trifolium repens")},
	}
	svc := newResolver(repo)

	res, err := svc.Resolve(context.Background(), resolve.KindSpecies, "trifolium")
	require.NoError(t, err)
	require.Equal(t, resolve.StatusUnique, res.Status)
	require.Equal(t, int64(3), res.Match.ID)
}

func TestResolverService_MultipleFuzzyHitsRankedClosestFirst(t *testing.T) {
	repo := &mockSpeciesRepo{
		search: []*species.Species{
			newSpecies(2, "Zea mays subsp. mexicana"),
			newSpecies(1, "Zea mays"),
		},
	}
	svc := newResolver(repo)

	res, err := svc.Resolve(context.Background(), resolve.KindSpecies, "zea may")
	require.NoError(t, err)
	require.Equal(t, resolve.StatusAmbiguous, res.Status)
	require.Len(t, res.Candidates, 2)
	require.Equal(t, "Zea mays", res.Candidates[0].Label, "shorter edit distance ranks first")
	require.LessOrEqual(t, res.Candidates[0].Score, res.Candidates[1].Score)
}

func TestResolverService_NoMatchesIsNotFound(t *testing.T) {
	repo := &mockSpeciesRepo{}
	svc := newResolver(repo)

	res, err := svc.Resolve(context.Background(), resolve.KindSpecies, "Hordeum vulgare")
	require.NoError(t, err)
	require.Equal(t, resolve.StatusNotFound, res.Status)
	require.Empty(t, res.Candidates)
}

func TestResolverService_EmptyQuerySkipsStorage(t *testing.T) {
	repo := &mockSpeciesRepo{}
	svc := newResolver(repo)

	res, err := svc.Resolve(context.Background(), resolve.KindSpecies, "   ")
	require.NoError(t, err)
	require.Equal(t, resolve.StatusNotFound, res.Status)
	require.Zero(t, repo.exactCalls)
	require.Zero(t, repo.searchCall)
}

func TestResolverService_StorageErrorPropagates(t *testing.T) {
	repo := &mockSpeciesRepo{err: errors.New("connection refused")}
	svc := newResolver(repo)

	_, err := svc.Resolve(context.Background(), resolve.KindSpecies, "Zea mays")
	require.Error(t, err)
}

func TestResolverService_ResolveAllDeduplicates(t *testing.T) {
	repo := &mockSpeciesRepo{
		exact: []*species.Species{newSpecies(1, "Zea mays")},
	}
	svc := newResolver(repo)

	results, err := svc.ResolveAll(context.Background(), resolve.KindSpecies, []string{
		"Zea mays", " Zea mays ", "Zea mays",
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, 1, repo.exactCalls, "identical inputs resolve once")
	require.Equal(t, resolve.StatusUnique, results["Zea mays"].Status)
}

func TestResolverService_UnknownKind(t *testing.T) {
	svc := newResolver(&mockSpeciesRepo{})

	_, err := svc.Resolve(context.Background(), resolve.Kind("variety"), "anything")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrUnknownKind)
}
