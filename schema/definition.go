package schema

import "github.com/Luismorlan/msprsearch/model"

const (
	AnalyzerName = "ja_analyzer"
	StopFilter   = "ja_stop"

	SuggestField        = "suggest"
	TextVectorField     = "text_vector"
	CommentsVectorField = "comments_vector"
	DefaultVectorDims   = 768
)

type M = map[string]interface{}

// Definition is the body used to create an index.
type Definition struct {
	Settings M
	Mappings M
}

func (d Definition) Body() M {
	body := M{}
	if d.Settings != nil {
		body["settings"] = d.Settings
	}
	if d.Mappings != nil {
		body["mappings"] = d.Mappings
	}
	return body
}

// Evolution is applied to an existing index while it is closed. Mappings are
// put in order.
type Evolution struct {
	Settings M
	Mappings []M
}

// PostIndexDefinition is the index created on a full rebuild: a plain
// kuromoji analyzer, keyword identifiers, and nested comments.
func PostIndexDefinition() Definition {
	analyzed := func() M { return M{"type": "text", "analyzer": AnalyzerName} }
	withKeyword := func() M {
		f := analyzed()
		f["fields"] = M{"keyword": M{"type": "keyword", "ignore_above": 256}}
		return f
	}
	return Definition{
		Settings: M{
			"analysis": M{
				"analyzer": M{
					AnalyzerName: M{"type": "custom", "tokenizer": "kuromoji_tokenizer"},
				},
			},
		},
		Mappings: M{
			"properties": M{
				model.FieldPostedNumber: M{"type": "keyword"},
				model.FieldCreatedAt:    M{"type": "date"},
				model.FieldPostId:       M{"type": "keyword"},
				model.FieldPostedAt:     M{"type": "date"},
				model.FieldPostedUser:   M{"type": "keyword"},
				model.FieldText:         analyzed(),
				model.FieldDeletedAt:    M{"type": "date"},
				model.FieldPostStatus:   M{"type": "integer"},
				model.FieldHashTags:     withKeyword(),
				model.FieldKeywords:     withKeyword(),
				model.FieldComments: M{
					"type": "nested",
					"properties": M{
						"CommentNumber":        M{"type": "keyword"},
						model.FieldCreatedAt:   M{"type": "date"},
						"CommentId":            M{"type": "keyword"},
						"CommentedUser":        M{"type": "keyword"},
						model.FieldText:        analyzed(),
						model.FieldCommentedAt: M{"type": "date"},
						model.FieldDeletedAt:   M{"type": "date"},
					},
				},
			},
		},
	}
}

// SuggestEvolution upgrades the analyzer with base form, part of speech, stop
// word and stemming filters, and adds completion sub fields for autosuggest.
// vectorDims > 0 also adds dense vector fields for semantic search.
func SuggestEvolution(vectorDims int) Evolution {
	suggestable := func() M {
		return M{
			"type":     "text",
			"analyzer": AnalyzerName,
			"fields": M{
				SuggestField: M{"type": "completion", "analyzer": AnalyzerName},
			},
		}
	}

	evo := Evolution{
		Settings: M{
			"analysis": M{
				"analyzer": M{
					AnalyzerName: M{
						"type":      "custom",
						"tokenizer": "kuromoji_tokenizer",
						"filter":    []string{"kuromoji_baseform", "kuromoji_part_of_speech", StopFilter, "kuromoji_stemmer"},
					},
				},
				"filter": M{
					StopFilter: M{"type": "stop", "stopwords": "_japanese_"},
				},
			},
		},
		Mappings: []M{
			{
				"properties": M{
					model.FieldText:     suggestable(),
					model.FieldKeywords: suggestable(),
					model.FieldHashTags: suggestable(),
					model.FieldComments: M{
						"type": "nested",
						"properties": M{
							model.FieldText: suggestable(),
						},
					},
				},
			},
		},
	}

	if vectorDims > 0 {
		evo.Mappings = append(evo.Mappings, M{
			"properties": M{
				TextVectorField:     M{"type": "dense_vector", "dims": vectorDims},
				CommentsVectorField: M{"type": "dense_vector", "dims": vectorDims},
			},
		})
	}
	return evo
}
