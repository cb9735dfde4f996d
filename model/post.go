package model

/*

Post is one row of the denormalized post/comment source view, in the shape it
takes once indexed.

PostId: document identifier in the search index
PostedNumber: human facing post number
PostedUser: author identifier
PostedAt: time the post was made, RFC3339
CreatedAt: time the source row was created, RFC3339
DeletedAt: soft deletion time, nil when the post is live
PostStatus: integer status code from the source system

Text: raw free text, authoritative source for Keywords and HashTags
Keywords: derived keywords, always a list in the index
HashTags: derived hashtags without the leading '#', always a list in the index
Comments: comments under this post, nested objects in the index
*/

type Post struct {
	PostId       string    `json:"PostId" mapstructure:"PostId"`
	PostedNumber string    `json:"PostedNumber,omitempty" mapstructure:"PostedNumber"`
	PostedUser   string    `json:"PostedUser,omitempty" mapstructure:"PostedUser"`
	PostedAt     string    `json:"PostedAt,omitempty" mapstructure:"-"`
	CreatedAt    string    `json:"CreatedAt,omitempty" mapstructure:"-"`
	DeletedAt    *string   `json:"DeletedAt,omitempty" mapstructure:"-"`
	PostStatus   int       `json:"PostStatus" mapstructure:"PostStatus"`
	Text         string    `json:"Text,omitempty" mapstructure:"Text"`
	Keywords     []string  `json:"Keywords" mapstructure:"-"`
	HashTags     []string  `json:"HashTags" mapstructure:"-"`
	Comments     []Comment `json:"Comments" mapstructure:"-"`
}

/*

Comment is nested under a Post.

CommentId: unique within the system
CommentNumber: human facing comment number
CommentedUser: author identifier
CommentedAt / CreatedAt / DeletedAt: same conventions as Post
Text: raw comment text
*/

type Comment struct {
	CommentId     string  `json:"CommentId"`
	CommentNumber string  `json:"CommentNumber,omitempty"`
	CommentedUser string  `json:"CommentedUser,omitempty"`
	CommentedAt   string  `json:"CommentedAt,omitempty"`
	CreatedAt     string  `json:"CreatedAt,omitempty"`
	DeletedAt     *string `json:"DeletedAt,omitempty"`
	Text          string  `json:"Text,omitempty"`
}
