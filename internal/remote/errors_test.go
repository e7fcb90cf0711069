package remote

import (
	"errors"
	"fmt"
	"testing"

	"briefboard/internal/util"
)

func TestClassifyError(t *testing.T) {
	cases := map[error]ErrorType{
		fmt.Errorf("list summaries: %w", util.ErrAuth):                                      ErrorAuth,
		fmt.Errorf("summarize: %w", util.ErrNetwork):                                        ErrorNetwork,
		fmt.Errorf("x.pdf: %w", util.ErrPartialBatch):                                       ErrorPartial,
		fmt.Errorf("big.pdf: %w", util.ErrTooLarge):                                         ErrorPermanent,
		fmt.Errorf("%w: %w", util.ErrValidation, util.ErrTooLarge):                          ErrorValidation,
		errors.New("dial tcp: connection refused"):                                          ErrorNetwork,
		errors.New("status 401"):                                                            ErrorAuth,
		errors.New("bad request"):                                                           ErrorPermanent,
		&StatusError{StatusCode: 403}:                                                       ErrorAuth,
		&StatusError{StatusCode: 429}:                                                       ErrorNetwork,
		&StatusError{StatusCode: 502, Body: "bad gateway"}:                                  ErrorNetwork,
		fmt.Errorf("list: %w", &StatusError{StatusCode: 422, Body: "401 unauthorized eof"}): ErrorPermanent,
	}
	for err, want := range cases {
		if got := ClassifyError(err); got != want {
			t.Fatalf("classify %q: got %s want %s", err, got, want)
		}
	}
	if got := ClassifyError(nil); got != "" {
		t.Fatalf("classify nil: got %s", got)
	}
}
