package model

import (
	"bytes"
	"encoding/json"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// Source view and index field names.
const (
	FieldPostId       = "PostId"
	FieldPostedNumber = "PostedNumber"
	FieldPostedUser   = "PostedUser"
	FieldPostedAt     = "PostedAt"
	FieldCreatedAt    = "CreatedAt"
	FieldDeletedAt    = "DeletedAt"
	FieldPostStatus   = "PostStatus"
	FieldText         = "Text"
	FieldKeywords     = "Keywords"
	FieldHashTags     = "HashTags"
	FieldComments     = "Comments"

	FieldCommentedAt = "CommentedAt"
)

// Row is one record read from the source view, keyed by the column names the
// query reported. Values keep whatever type the driver produced.
type Row map[string]interface{}

// Document is the body written to the search index for one Post.
type Document map[string]interface{}

// DecodePost reads the scalar identity fields of a row (PostId, PostedNumber,
// PostedUser, PostStatus, Text). Drivers disagree on the Go type of these
// columns, so decoding is weakly typed: []byte and numbers become strings.
func DecodePost(row Row) (Post, error) {
	var p Post
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	scalars := map[string]interface{}{}
	for _, k := range []string{FieldPostId, FieldPostedNumber, FieldPostedUser, FieldPostStatus, FieldText} {
		if v, ok := row[k]; ok && v != nil {
			scalars[k] = v
		}
	}
	if err := dec.Decode(scalars); err != nil {
		return p, errors.Wrap(err, "decode post row")
	}
	return p, nil
}

// DecodeDocument converts an indexed document source back to a Post. Source
// columns are indexed with their driver type, so numbers are accepted where
// the Post holds strings (PostedNumber, CommentNumber).
func DecodeDocument(source json.RawMessage) (Post, error) {
	var p Post
	var raw map[string]interface{}
	dec := json.NewDecoder(bytes.NewReader(source))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return p, errors.Wrap(err, "decode indexed document")
	}
	md, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		TagName:          "json",
		Result:           &p,
	})
	if err != nil {
		return p, err
	}
	if err := md.Decode(raw); err != nil {
		return p, errors.Wrap(err, "decode indexed document")
	}
	return p, nil
}
