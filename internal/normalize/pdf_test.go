// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package normalize

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPDFAdapter_Errors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKind ErrorKind
	}{
		{"not a pdf", "this is plainly not a PDF document at all, just some words", KindPDFParse},
		{"truncated", "%PDF-1.4\n1 0 obj << /Type /Catalog >> endobj\n", KindPDFParse},
		{"encrypted trailer", "%PDF-1.4\ntrailer << /Encrypt 5 0 R /Root 1 0 R >>\n", KindPDFEncrypted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := (&PDFAdapter{}).Normalize(context.Background(), tt.input)
			var ee *ExtractionError
			require.True(t, errors.As(err, &ee), "got %v", err)
			assert.Equal(t, tt.wantKind, ee.Kind)
		})
	}
}

func TestIsEncryptionError(t *testing.T) {
	assert.True(t, isEncryptionError(errors.New("file is encrypted"), nil))
	assert.True(t, isEncryptionError(errors.New("need password"), nil))
	assert.True(t, isEncryptionError(errors.New("bad xref"), []byte("<< /Encrypt 3 0 R >>")))
	assert.False(t, isEncryptionError(errors.New("bad xref"), []byte("%PDF-1.7")))
}

func TestSplitAuthorField(t *testing.T) {
	assert.Equal(t, []string{"A. Smith", "B. Jones", "C. Lee"}, splitAuthorField("A. Smith; B. Jones and C. Lee"))
	assert.Nil(t, splitAuthorField("   "))
}

func TestGuessTitle(t *testing.T) {
	text := "Journal of Things, Volume 3, Issue 2\nhttps://doi.org/10.1/x\nShort\nEffects of Intermittent Fasting on Weight Loss in Adults\nJane Smith"
	assert.Equal(t, "Effects of Intermittent Fasting on Weight Loss in Adults", guessTitle(text))
	assert.Empty(t, guessTitle("tiny\nlines\nonly"))
}
