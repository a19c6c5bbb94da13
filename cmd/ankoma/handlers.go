package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/danieldreier/ankoma-flashcards/internal/reveal"
	"github.com/danieldreier/ankoma-flashcards/internal/study"
)

type contextKey string

// serviceKey carries the *StudyService in handler contexts.
const serviceKey contextKey = "service"

// DeckOverviewURI identifies the deck-overview resource.
const DeckOverviewURI = "ankoma://deck-overview"

func withService(ctx context.Context, s *StudyService) context.Context {
	return context.WithValue(ctx, serviceKey, s)
}

func serviceFrom(ctx context.Context) (*StudyService, bool) {
	s, ok := ctx.Value(serviceKey).(*StudyService)
	return s, ok && s != nil
}

// jsonResult wraps v as an indented JSON text result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(jsonBytes)), nil
}

// errorResult reports a user-facing failure as a JSON text result.
func errorResult(format string, args ...interface{}) *mcp.CallToolResult {
	jsonBytes, err := json.MarshalIndent(ErrorResponse{Error: fmt.Sprintf(format, args...)}, "", "  ")
	if err != nil {
		return mcp.NewToolResultText(fmt.Sprintf(`{"error": %q}`, fmt.Sprintf(format, args...)))
	}
	return mcp.NewToolResultText(string(jsonBytes))
}

// sessionFor resolves the session named by the session_id argument. On failure
// the returned result describes the problem.
func sessionFor(ctx context.Context, request mcp.CallToolRequest) (*study.Session, *mcp.CallToolResult) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return nil, errorResult("Service not available")
	}
	id, ok := request.Params.Arguments["session_id"].(string)
	if !ok || id == "" {
		return nil, errorResult("Missing required parameter: session_id")
	}
	sess, err := s.Session(id)
	if err != nil {
		return nil, errorResult("Error finding session: %v", err)
	}
	return sess, nil
}

func sessionResult(sess *study.Session, success bool, message string, action reveal.Action) (*mcp.CallToolResult, error) {
	return jsonResult(SessionResponse{
		Success: success,
		Message: message,
		Action:  action,
		Card:    sess.View(),
	})
}

// handleListSections lists the deck tree, optionally filtered by a search query.
func handleListSections(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("Service not available"), nil
	}
	query, _ := request.Params.Arguments["query"].(string)

	return jsonResult(ListSectionsResponse{
		Query:    query,
		Sections: s.ListSections(query),
	})
}

// handleListDecks lists the decks and categories derived from ANKOMA tags.
func handleListDecks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("Service not available"), nil
	}
	return jsonResult(ListDecksResponse{Decks: s.ListDecks()})
}

// handleStartSession opens a session over a section, or over a tag category
// when deck_id and category_id are given, and shows its first card.
func handleStartSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("Service not available"), nil
	}

	args := request.Params.Arguments
	opts := StartOptions{}
	opts.SectionID, _ = args["section_id"].(string)
	opts.DeckID, _ = args["deck_id"].(string)
	opts.CategoryID, _ = args["category_id"].(string)
	opts.Subcategory, _ = args["subcategory"].(string)
	if (opts.DeckID == "") != (opts.CategoryID == "") {
		return errorResult("deck_id and category_id must be given together"), nil
	}
	if seed, ok := args["shuffle"].(float64); ok {
		n := int64(seed)
		opts.Shuffle = &n
	}

	sess, notice, err := s.StartSession(opts)
	if err != nil {
		if errors.Is(err, study.ErrNoCards) {
			return errorResult("No cards to study in this selection"), nil
		}
		return errorResult("Error starting session: %v", err), nil
	}

	message := fmt.Sprintf("Started %s with %d cards", sess.Title(), sess.Len())
	if notice != "" {
		message = notice + ". " + message
	}
	return sessionResult(sess, true, message, reveal.ActionNone)
}

// handleShowCard renders the current card of a session.
func handleShowCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := sessionFor(ctx, request)
	if errRes != nil {
		return errRes, nil
	}
	return sessionResult(sess, true, "", reveal.ActionNone)
}

// handleRevealCloze toggles one cloze group, or reveals all of them when all
// is true.
func handleRevealCloze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := sessionFor(ctx, request)
	if errRes != nil {
		return errRes, nil
	}

	if all, _ := request.Params.Arguments["all"].(bool); all {
		sess.RevealAll()
		return sessionResult(sess, true, "Revealed every cloze", reveal.ActionRevealed)
	}

	indexFloat, ok := request.Params.Arguments["index"].(float64)
	if !ok {
		return errorResult("Missing required parameter: index"), nil
	}
	index := int(indexFloat)
	if !sess.Reveal(index) {
		return sessionResult(sess, false, fmt.Sprintf("Card has no cloze c%d", index), reveal.ActionNone)
	}
	return sessionResult(sess, true, fmt.Sprintf("Toggled cloze c%d", index), reveal.ActionRevealed)
}

// handleToggleAnswer flips the answer of a basic or image-occlusion card.
func handleToggleAnswer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := sessionFor(ctx, request)
	if errRes != nil {
		return errRes, nil
	}
	if sess.View().Kind == reveal.KindCloze {
		return sessionResult(sess, false, "Cloze cards are revealed with reveal_cloze", reveal.ActionNone)
	}
	shown := sess.ToggleAnswer()
	message := "Answer hidden"
	if shown {
		message = "Answer shown"
	}
	return sessionResult(sess, true, message, reveal.ActionAnswerShown)
}

// handlePressKey feeds a key press through the keyboard rules of the card view.
func handlePressKey(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := sessionFor(ctx, request)
	if errRes != nil {
		return errRes, nil
	}
	args := request.Params.Arguments
	key, ok := args["key"].(string)
	if !ok || key == "" {
		return errorResult("Missing required parameter: key"), nil
	}
	ev := reveal.KeyEvent{Code: key}
	ev.Ctrl, _ = args["ctrl"].(bool)
	ev.Meta, _ = args["meta"].(bool)
	ev.InTextInput, _ = args["in_text_input"].(bool)

	before := sess.Index()
	action := sess.Key(ev)
	message := ""
	switch action {
	case reveal.ActionNext, reveal.ActionPrevious:
		if sess.Index() == before {
			message = "No card in that direction"
		}
	case reveal.ActionNone:
		message = fmt.Sprintf("Key %q has no effect here", key)
	}
	return sessionResult(sess, action != reveal.ActionNone, message, action)
}

// handleNavigate moves to the next or previous card.
func handleNavigate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := sessionFor(ctx, request)
	if errRes != nil {
		return errRes, nil
	}
	direction, _ := request.Params.Arguments["direction"].(string)

	var moved bool
	var action reveal.Action
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "next", "":
		moved, action = sess.Next(), reveal.ActionNext
	case "previous", "prev", "back":
		moved, action = sess.Previous(), reveal.ActionPrevious
	default:
		return errorResult("Unknown direction %q, use next or previous", direction), nil
	}
	if !moved {
		return sessionResult(sess, false, "No card in that direction", action)
	}
	return sessionResult(sess, true, "", action)
}

// handleResetCard hides everything on the current card again.
func handleResetCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sess, errRes := sessionFor(ctx, request)
	if errRes != nil {
		return errRes, nil
	}
	sess.ResetCard()
	return sessionResult(sess, true, "Card reset", reveal.ActionReset)
}

// handleEndSession closes a session and reports its prefetch counters.
func handleEndSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return errorResult("Service not available"), nil
	}
	id, ok := request.Params.Arguments["session_id"].(string)
	if !ok || id == "" {
		return errorResult("Missing required parameter: session_id"), nil
	}
	stats, err := s.EndSession(id)
	if err != nil {
		return errorResult("Error ending session: %v", err), nil
	}
	return jsonResult(EndSessionResponse{
		Success: true,
		Message: fmt.Sprintf("Session %s ended", id),
		Preload: stats,
	})
}

// handleDeckOverviewResource renders the deck-overview resource.
func handleDeckOverviewResource(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	s, ok := serviceFrom(ctx)
	if !ok {
		return nil, fmt.Errorf("service not available")
	}

	jsonBytes, err := json.MarshalIndent(s.Overview(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("error encoding deck overview: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      DeckOverviewURI,
			MIMEType: "application/json",
			Text:     string(jsonBytes),
		},
	}, nil
}
