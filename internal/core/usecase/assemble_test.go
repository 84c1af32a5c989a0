package usecase

import (
	"fmt"
	"testing"

	"github.com/kirillkom/tabular-rag/internal/core/domain"
)

func TestAssembleContextOrdersUploadsFirst(t *testing.T) {
	for uploads := 0; uploads <= 3; uploads++ {
		for retrieved := 0; retrieved <= 3; retrieved++ {
			up := make([]string, uploads)
			for i := range up {
				up[i] = fmt.Sprintf("u%d", i)
			}
			ret := make([]string, retrieved)
			for i := range ret {
				ret[i] = fmt.Sprintf("r%d", i)
			}

			items := AssembleContext(up, ret)
			if len(items) != uploads+retrieved {
				t.Fatalf("uploads=%d retrieved=%d: got %d items", uploads, retrieved, len(items))
			}
			for i, item := range items {
				if item.Order != i {
					t.Fatalf("item %d has order %d", i, item.Order)
				}
				if i < uploads {
					if item.Origin != domain.OriginUpload || item.Text != up[i] {
						t.Fatalf("item %d: expected upload %q, got %+v", i, up[i], item)
					}
					continue
				}
				if item.Origin != domain.OriginIndexed || item.Text != ret[i-uploads] {
					t.Fatalf("item %d: expected indexed %q, got %+v", i, ret[i-uploads], item)
				}
			}
		}
	}
}

func TestAssembleContextKeepsDuplicates(t *testing.T) {
	items := AssembleContext([]string{"same"}, []string{"same", "same"})
	if len(items) != 3 {
		t.Fatalf("expected duplicates to be kept, got %d items", len(items))
	}
}
