package workerinfo

import "testing"

func TestMetadata(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		if Version() == "" {
			t.Fatal("Version() returned empty string")
		}
		if Version() != Info.Version {
			t.Fatalf("Version() mismatch: got %q want %q", Version(), Info.Version)
		}
	})

	t.Run("run metadata", func(t *testing.T) {
		meta := RunMetadata("tiny", "int8", "th")
		if meta["worker"] != Info.Slug {
			t.Fatalf("unexpected worker slug: %q", meta["worker"])
		}
		if meta["model_variant"] != "tiny" || meta["compute_type"] != "int8" || meta["language"] != "th" {
			t.Fatalf("unexpected run metadata: %+v", meta)
		}
	})
}
