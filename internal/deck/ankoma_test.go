package deck

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	gofsrs "github.com/open-spaced-repetition/go-fsrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDeck = `{
  "name": "Root",
  "notes": [{"guid": "ignored", "fields": ["x", "y"]}],
  "children": [
    {
      "name": "AP",
      "children": [
        {
          "name": "Neuro Path",
          "notes": [
            {
              "guid": "a1b2",
              "note_model_uuid": "cb0c02c4-e328-11ef-a4df-cf9f22b82781",
              "fields": ["Header", "The {{c1::glioma}} is here", "Extra info", "", "Robbins", "Cite A<br><br>Cite B"],
              "tags": ["#ANKOMA::AP::NeuroPath::Tumors"]
            }
          ]
        },
        {"name": "Empty", "children": [{"name": "Deeper"}]}
      ]
    },
    {
      "name": "CP Coag",
      "notes": [
        {
          "guid": "",
          "note_model_uuid": "cb0a45d8-e328-11ef-a4df-cf9f22b82781",
          "fields": ["What is PT?", "", "", "Only a citation"],
          "tags": ["#ANKOMA::CP::Coagulation"]
        }
      ]
    }
  ]
}`

func TestDecodeJSON(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	data, err := DecodeJSON([]byte(sampleDeck), now)
	require.NoError(t, err)

	assert.Equal(t, now, data.LoadedAt)
	assert.Equal(t, 2, data.TotalCards, "root notes are not counted")

	var ids []string
	for _, s := range FlattenSections(data.Sections) {
		ids = append(ids, s.ID)
	}
	if diff := cmp.Diff([]string{"ap", "ap::neuro-path", "cp-coag"}, ids); diff != "" {
		t.Errorf("section ids mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"AP", "Neuro Path"}, data.Sections[0].Subsections[0].Path)
}

func TestDecodeJSONInvalid(t *testing.T) {
	_, err := DecodeJSON([]byte("{not json"), time.Now())
	assert.Error(t, err)
}

func TestConvertNoteAPCloze(t *testing.T) {
	note := RawNote{
		GUID:          "a1b2",
		NoteModelUUID: APModelUUID,
		Fields:        []string{"Header", "The {{c1::glioma}} is here", "Extra info", "", "Robbins", "Cite A<br><br>Cite B"},
		Tags:          []string{"#ANKOMA::AP::NeuroPath"},
	}
	card := ConvertNote(note, "Neuro", 4)

	assert.Equal(t, "a1b2", card.ID)
	assert.Equal(t, 5, card.CardID)
	assert.Equal(t, int64(12), card.NoteID)
	assert.Equal(t, ModelCloze, card.ModelName)
	assert.Equal(t, gofsrs.New, card.Type)
	assert.Equal(t, "The {{c1::glioma}} is here", card.Question)
	assert.Equal(t, "Header", card.Fields["Header"])
	assert.Equal(t,
		`<div class="extra-section">Extra info</div>`+
			`<div class="textbook-section"><h4>Textbook</h4>Robbins</div>`+
			`<div class="citation-section"><h4>Citation</h4>Cite A<div style="margin-top: 4px;">Cite B</div></div>`,
		card.Answer)
	assert.True(t, card.HasAnswerContent())
	assert.False(t, card.IsOcclusion())
}

func TestConvertNoteCPBasic(t *testing.T) {
	note := RawNote{
		NoteModelUUID: CPModelUUID,
		Fields:        []string{"What is PT?", "", "", "Only a citation"},
	}
	card := ConvertNote(note, "CP Coag", 0)

	assert.Equal(t, "CP Coag-0", card.ID)
	assert.Equal(t, int64(0), card.NoteID)
	assert.Equal(t, ModelBasic, card.ModelName)
	assert.Equal(t, "What is PT?", card.Question)
	assert.Equal(t, `<div class="citation-section"><h4>Citation</h4>Only a citation</div>`, card.Answer)
	assert.False(t, card.HasAnswerContent())
}

func TestFieldLayout(t *testing.T) {
	tests := []struct {
		name   string
		note   RawNote
		deck   string
		wantCP bool
	}{
		{"cp model", RawNote{NoteModelUUID: CPModelUUID}, "Anything", true},
		{"ap model in cp deck", RawNote{NoteModelUUID: APModelUUID}, "CP Coag", false},
		{"hemepath tag", RawNote{NoteModelUUID: CPModelUUID, Tags: []string{"#ANKOMA::CP::Hemepath::Lymphoma"}}, "CP", false},
		{"cp deck name", RawNote{}, "CP Blood Bank", true},
		{"hemepath deck", RawNote{}, "CP Hemepath", false},
		{"unknown model elsewhere", RawNote{}, "Neuro", false},
		{"cp tag outside cp deck", RawNote{Tags: []string{"#ANKOMA::CP::Micro"}}, "Micro", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCP, isCPLayout(tt.note, tt.deck))
		})
	}
}

func TestConvertNoteOcclusion(t *testing.T) {
	fields := []string{"id", "Head", `<img src="slide.png">`, "Foot", "Remark", "", "", "", "<svg>q</svg>", "", "<svg>o</svg>"}
	card := ConvertNote(RawNote{GUID: "g", Fields: fields, Tags: []string{"#ANKOMA::AP::Skin"}}, "Skin", 0)

	assert.Equal(t, ModelOcclusion, card.ModelName)
	assert.True(t, card.IsOcclusion())
	assert.Equal(t, []string{"#ANKOMA::AP::Skin", "#image-occlusion"}, card.Tags)
	assert.Len(t, card.Fields, 11)
	assert.Equal(t,
		`<div id="io-header">Head</div><div id="io-wrapper"><div id="io-overlay"><svg>q</svg></div><div id="io-original"><img src="slide.png"></div></div><div id="io-footer">Foot</div>`,
		card.Question)
	assert.Contains(t, card.Answer, `<div id="io-overlay"><svg>q</svg></div>`, "answer mask falls back to question mask")
	assert.Contains(t, card.Answer, `<div class="io-field-descr">Remarks</div>Remark`)
	assert.NotContains(t, card.Answer, "Sources")
}

func TestOcclusionDetection(t *testing.T) {
	assert.True(t, isOcclusionNote(RawNote{NoteModelUUID: "877ffc4c-73b3-11f0-bc32-8b3dff665248"}))
	assert.True(t, isOcclusionNote(RawNote{Fields: []string{"", `mask-Q.SVG`}}))
	assert.True(t, isOcclusionNote(RawNote{Fields: []string{`<img src="a.svg">`}}))
	assert.False(t, isOcclusionNote(RawNote{Fields: []string{`<img src="a.png">`}}), "an image alone is not occlusion")
}

func TestFormatCitations(t *testing.T) {
	assert.Equal(t, "Single", formatCitations("Single"))
	assert.Equal(t, `A<div style="margin-top: 4px;">B</div>`, formatCitations("A\n\nB"))
	assert.Equal(t, "One<br>line", formatCitations("One<br>line"))
}

func TestImageSources(t *testing.T) {
	c := Card{Question: "q", Answer: "a", Fields: map[string]string{"B": "b", "A": "a2", "Empty": ""}}
	assert.Equal(t, []string{"q", "a", "a2", "b"}, c.ImageSources())
}
