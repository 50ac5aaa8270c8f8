package cleanup_test

import (
	"context"
	"testing"

	"github.com/parsavox/medscribe/internal/cleanup"
)

func TestRulesClean(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "empty input",
			in:   "",
			want: "",
		},
		{
			name: "collapses space runs",
			in:   "patient   presents  with   pain",
			want: "patient presents with pain",
		},
		{
			name: "collapses tabs",
			in:   "mri\t\tscan",
			want: "mri scan",
		},
		{
			name: "keeps newlines",
			in:   "line one\nline two",
			want: "line one\nline two",
		},
		{
			name: "trims space before latin punctuation",
			in:   "no acute findings .",
			want: "no acute findings.",
		},
		{
			name: "trims space before persian punctuation",
			in:   "بیمار مراجعه کرد ؟",
			want: "بیمار مراجعه کرد؟",
		},
		{
			name: "adds space after persian comma",
			in:   "سردرد،تهوع و سرگیجه",
			want: "سردرد، تهوع و سرگیجه",
		},
		{
			name: "adds space after persian semicolon",
			in:   "قند خون بالا؛فشار خون طبیعی",
			want: "قند خون بالا؛ فشار خون طبیعی",
		},
		{
			name: "leaves decimal numbers alone",
			in:   "dose is 2.5mg daily",
			want: "dose is 2.5mg daily",
		},
		{
			name: "squashes repeated question marks",
			in:   "نتیجه چه بود؟؟؟",
			want: "نتیجه چه بود؟",
		},
		{
			name: "keeps ellipsis",
			in:   "و بعد...",
			want: "و بعد...",
		},
		{
			name: "trims surrounding whitespace",
			in:   "  گزارش نهایی  ",
			want: "گزارش نهایی",
		},
		{
			name: "combined",
			in:   "بیمار ۴۵ ساله ،  با سابقه دیابت،مراجعه کرد .",
			want: "بیمار ۴۵ ساله، با سابقه دیابت، مراجعه کرد.",
		},
	}

	var r cleanup.Rules
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := r.Clean(context.Background(), tc.in)
			if err != nil {
				t.Fatalf("Clean() error = %v", err)
			}
			if got != tc.want {
				t.Errorf("Clean(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRulesCleanIdempotent(t *testing.T) {
	t.Parallel()

	var r cleanup.Rules
	in := "بیمار ۴۵ ساله ،  با سابقه دیابت مراجعه کرد ."

	once, err := r.Clean(context.Background(), in)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	twice, err := r.Clean(context.Background(), once)
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if once != twice {
		t.Errorf("Clean() not idempotent: %q != %q", once, twice)
	}
}
