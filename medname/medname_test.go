package medname_test

import (
	"testing"

	"github.com/jrsteele09/go-medscan-client/medname"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"Paracetamol 500 mg", "Paracetamol"},
		{"Paracetamol 500mg", "Paracetamol"},
		{"Aspirin", "Aspirin"},
		{"  Aspirin  ", "Aspirin"},
		{"Ibuprofen 200MG", "Ibuprofen"},
		{"Amoxicillin 250 mg 2 capsule", "Amoxicillin"},
		{"Vitamin D3 1000 IU", "Vitamin D3"},
		{"Salbutamol 100 mcg 1 puff", "Salbutamol"},
		{"Hydrocortisone 1% cream", "Hydrocortisone cream"},
		{"Betadine 10 percent", "Betadine"},
		{"Cough Syrup 5 mL", "Cough Syrup"},
		{"Insulin 100 units", "Insulin"},
		{"Dolo 650", "Dolo 650"},
		{"Crocin 0.5 g", "Crocin"},
		{"500 mg", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			require.Equal(t, tt.expected, medname.Normalize(tt.raw))
		})
	}
}

func TestNormalizeKeepsWordsThatStartWithUnits(t *testing.T) {
	// "mg" must be a whole unit, not the prefix of a longer word.
	require.Equal(t, "Zinc 5mgx", medname.Normalize("Zinc 5mgx"))
	require.Equal(t, "Tabletop", medname.Normalize("Tabletop"))
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"Paracetamol 500 mg",
		"X 1 2mg g",
		"Drug 1 2 3mg mg mg",
		"Co-amoxiclav 500mg/125mg",
		"  spaced   out 10 mL  ",
		"Nothing to strip",
		"5%%",
	}

	for _, in := range inputs {
		once := medname.Normalize(in)
		require.Equal(t, once, medname.Normalize(once), "input %q", in)
	}
}

func TestNormalizeAllKeepsOrderAndDuplicates(t *testing.T) {
	got := medname.NormalizeAll([]string{"B 10 mg", "A", "B 20mg"})
	require.Equal(t, []string{"B", "A", "B"}, got)
	require.Empty(t, medname.NormalizeAll(nil))
}
