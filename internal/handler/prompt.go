package handler

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/stemvault/orderbuilder/internal/domain/catalog"
)

// errSuggestionPending aborts a selection because the operator has not
// answered a bundle suggestion yet. The handler turns it into a response
// carrying the options; the client repeats the request with a decision.
var errSuggestionPending = errors.New("bundle suggestion pending")

type promptKey struct{}

// promptState carries the operator's suggestion decision into a request
// and the pending options back out of it.
type promptState struct {
	decided bool
	chosen  string

	options []catalog.Suggestion
}

func withPromptState(ctx context.Context, st *promptState) context.Context {
	return context.WithValue(ctx, promptKey{}, st)
}

// httpPrompter resolves bundle suggestions from the request's prompt
// state instead of blocking on an interactive surface.
type httpPrompter struct{}

func (httpPrompter) SuggestBundle(ctx context.Context, options []catalog.Suggestion) (string, error) {
	st, ok := ctx.Value(promptKey{}).(*promptState)
	if !ok {
		return "", nil
	}
	if st.decided {
		return st.chosen, nil
	}
	st.options = options
	return "", errSuggestionPending
}
