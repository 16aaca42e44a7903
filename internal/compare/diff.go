package compare

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/yuya-takeyama/strict-tree-cmp/internal/logging"
)

// ListingDiff renders a unified diff between two sorted path listings
func ListingDiff(a, b []string, labelA, labelB string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        withNewlines(a),
		B:        withNewlines(b),
		FromFile: labelA,
		ToFile:   labelB,
		Context:  1,
	})
}

func withNewlines(lines []string) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l + "\n"
	}
	return out
}

func logListingDiff(logger *logging.Logger, a, b []string, labelA, labelB string) {
	if !logger.Enabled(logging.VerbosityUltra) {
		return
	}
	diff, err := ListingDiff(a, b, labelA, labelB)
	if err != nil {
		logger.Error("render listing diff: %v", err)
		return
	}
	logger.Debug("%s", strings.TrimRight(diff, "\n"))
}
