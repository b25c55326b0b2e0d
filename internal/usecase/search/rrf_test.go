package search

import (
	"testing"

	"github.com/clipdeck/vidrank/internal/domain"
)

func hit(id string, score float64) domain.Hit {
	return domain.Hit{VideoID: id, Score: score, Video: domain.VideoDocument{ID: id}}
}

func ids(hits []domain.Hit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.VideoID
	}
	return out
}

func TestFuseRRF_BothListsAgree(t *testing.T) {
	lex := []domain.Hit{hit("a", 12.5), hit("b", 4.1)}
	knn := []domain.Hit{hit("a", 0.93), hit("c", 0.88)}

	fused := fuseRRF(lex, knn)
	if len(fused) != 3 {
		t.Fatalf("expected 3 distinct ids, got %v", ids(fused))
	}
	// "a" appears first in both lists: 2/(60+1) beats any single contribution.
	if fused[0].VideoID != "a" {
		t.Fatalf("expected doc in both lists first, got %v", ids(fused))
	}
}

func TestFuseRRF_ScaleInvariant(t *testing.T) {
	lex := []domain.Hit{hit("a", 100), hit("b", 50), hit("c", 10)}
	knn := []domain.Hit{hit("c", 0.9), hit("a", 0.5)}

	base := ids(fuseRRF(lex, knn))

	// Scale every score by a positive constant: rank order is unchanged, so
	// the fused order must be identical.
	scale := func(hits []domain.Hit, f float64) []domain.Hit {
		out := make([]domain.Hit, len(hits))
		for i, h := range hits {
			h.Score *= f
			out[i] = h
		}
		return out
	}
	scaled := ids(fuseRRF(scale(lex, 1000), scale(knn, 0.001)))

	for i := range base {
		if base[i] != scaled[i] {
			t.Fatalf("fused order changed under score scaling: %v vs %v", base, scaled)
		}
	}
}

func TestFuseRRF_EmptyListDegenerates(t *testing.T) {
	lex := []domain.Hit{hit("a", 3), hit("b", 2), hit("c", 1)}

	fused := fuseRRF(lex, nil)
	got := ids(fused)
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order of the non-empty list, got %v", got)
		}
	}
}

func TestFuseRRF_TieBreaksByBestRankThenID(t *testing.T) {
	// "x" and "y" each appear only at rank 1 of one list: equal RRF scores,
	// equal best ranks, so id ascending decides.
	lex := []domain.Hit{hit("a", 2), hit("y", 1)}
	knn := []domain.Hit{hit("a", 2), hit("x", 1)}

	fused := fuseRRF(lex, knn)
	got := ids(fused)
	if got[0] != "a" || got[1] != "x" || got[2] != "y" {
		t.Fatalf("unexpected tie-break order: %v", got)
	}
}

func TestFuseRRF_FusedScoreIsSummed(t *testing.T) {
	lex := []domain.Hit{hit("a", 1)}
	knn := []domain.Hit{hit("a", 1)}

	fused := fuseRRF(lex, knn)
	want := 2.0 / 61.0
	if diff := fused[0].Score - want; diff > 1e-12 || diff < -1e-12 {
		t.Fatalf("expected fused score %v, got %v", want, fused[0].Score)
	}
}
