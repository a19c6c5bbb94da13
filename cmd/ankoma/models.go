// Package main provides the ankoma study MCP server.
package main

import (
	"time"

	"github.com/danieldreier/ankoma-flashcards/internal/deck"
	"github.com/danieldreier/ankoma-flashcards/internal/preload"
	"github.com/danieldreier/ankoma-flashcards/internal/reveal"
	"github.com/danieldreier/ankoma-flashcards/internal/study"
)

// SectionSummary describes one section of the deck tree without its cards
type SectionSummary struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Path        []string          `json:"path"`
	Stats       deck.SectionStats `json:"stats"`
	Subsections []SectionSummary  `json:"subsections,omitempty"`
	Preview     string            `json:"preview,omitempty"`
}

// SubcategorySummary counts the cards of one subcategory
type SubcategorySummary struct {
	Name      string `json:"name"`
	CardCount int    `json:"card_count"`
}

// CategorySummary describes a tag-derived category
type CategorySummary struct {
	ID            string               `json:"id"`
	Name          string               `json:"name"`
	CardCount     int                  `json:"card_count"`
	Subcategories []SubcategorySummary `json:"subcategories,omitempty"`
}

// DeckSummary describes a tag-derived deck
type DeckSummary struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	TotalCards int               `json:"total_cards"`
	Categories []CategorySummary `json:"categories"`
}

// ListSectionsResponse represents the response structure for list_sections
type ListSectionsResponse struct {
	Query    string           `json:"query,omitempty"`
	Sections []SectionSummary `json:"sections"`
}

// ListDecksResponse represents the response structure for list_decks
type ListDecksResponse struct {
	Decks []DeckSummary `json:"decks"`
}

// SessionResponse represents the response of tools acting on a session
type SessionResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message,omitempty"`
	Action  reveal.Action  `json:"action"`
	Card    study.CardView `json:"card"`
}

// EndSessionResponse represents the response structure for end_session
type EndSessionResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message"`
	Preload preload.Stats `json:"preload"`
}

// DeckOverview is the content of the deck-overview resource
type DeckOverview struct {
	TotalCards     int              `json:"total_cards"`
	LoadedAt       time.Time        `json:"loaded_at"`
	Sections       []SectionSummary `json:"sections"`
	Decks          []DeckSummary    `json:"decks"`
	ActiveSessions int              `json:"active_sessions"`
}

// ErrorResponse is the body of every user-facing failure
type ErrorResponse struct {
	Error string `json:"error"`
}
