package redis

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/clipdeck/vidrank/internal/db"
)

// allTextFields is the weighted multi-match field group; weights live in the schema.
const allTextFields = db.FieldTitle + "|" + db.FieldTagsText + "|" + db.FieldDescription + "|" + db.FieldTranscript

// prefixTextFields is the phrase-prefix boost field group (no transcript).
const prefixTextFields = db.FieldTitle + "|" + db.FieldTagsText + "|" + db.FieldDescription

// fuzzyMinLen is the minimum term length for fuzzy (LD1) matching; shorter
// terms match exactly to avoid noise on 2-3 letter tokens.
const fuzzyMinLen = 4

// SearchLexical runs a weighted full-text query via FT.SEARCH.
func (s *Store) SearchLexical(ctx context.Context, q *db.LexicalQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if q.Limit <= 0 {
		return nil, fmt.Errorf("limit must be positive")
	}

	queryStr := buildLexicalQueryString(q)

	args := []string{q.IndexName, queryStr}

	withScores := q.SortField == ""
	if withScores {
		args = append(args, "WITHSCORES")
	} else {
		args = append(args, "SORTBY", q.SortField, "DESC")
	}

	args = append(args,
		"LIMIT", strconv.Itoa(q.Offset), strconv.Itoa(q.Limit),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	if withScores {
		return parseScoredResult(raw)
	}
	return parsePlainResult(raw)
}

// SearchKNN runs a vector similarity search via FT.SEARCH.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if q.IndexName == "" {
		return nil, fmt.Errorf("index name is required")
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("vector is required")
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}

	filterStr := buildKNNFilter(q)

	knnPart := fmt.Sprintf("[KNN %d @%s $BLOB", q.K, db.FieldEmbedding)
	if q.NumCandidates > q.K {
		knnPart += fmt.Sprintf(" EF_RUNTIME %d", q.NumCandidates)
	}
	knnPart += "]"

	queryStr := fmt.Sprintf("(%s)=>%s", filterStr, knnPart)

	scoreField := "__" + db.FieldEmbedding + "_score"
	args := []string{
		q.IndexName, queryStr,
		"SORTBY", scoreField,
		"LIMIT", "0", strconv.Itoa(q.K),
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"DIALECT", "2",
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	return parseKNNResult(raw, scoreField)
}

// SearchCount returns document count via FT.SEARCH with LIMIT 0 0.
func (s *Store) SearchCount(ctx context.Context, index, query string) (int, error) {
	cmd := s.b().Arbitrary("FT.SEARCH").Args(index, query, "LIMIT", "0", "0", "DIALECT", "2").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpSearch, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, fmt.Errorf("parse count: %w", err)
	}
	return int(total), nil
}

// --- Query building ---

// buildLexicalQueryString translates a LexicalQuery into FT.SEARCH syntax.
// Required clauses are space-joined; boost clauses are optional (~) so they
// raise BM25 rank without constraining the match set.
func buildLexicalQueryString(q *db.LexicalQuery) string {
	var parts []string

	if q.PublishedOnly {
		parts = append(parts, fmt.Sprintf("@%s:{true}", db.FieldPublished))
	}

	if len(q.RequireTags) > 0 {
		parts = append(parts, fmt.Sprintf("@%s:{%s}", db.FieldTags, joinTagValues(q.RequireTags)))
	}

	for _, id := range q.ExcludeIDs {
		parts = append(parts, fmt.Sprintf("-@%s:{%s}", db.FieldID, tagEscaper.Replace(id)))
	}

	if q.TextMatchRequired && q.Query != "" {
		parts = append(parts, fmt.Sprintf("@%s:(%s)", allTextFields, fuzzyTermGroup(q.Query)))
	}

	var boosts []string
	if len(q.OwnerBoost) > 0 {
		boosts = append(boosts, fmt.Sprintf("@%s:{%s}", db.FieldOwnerID, joinTagValues(q.OwnerBoost)))
	}
	if len(q.TagBoost) > 0 {
		boosts = append(boosts, fmt.Sprintf("@%s:{%s}", db.FieldTags, joinTagValues(q.TagBoost)))
	}

	if q.BoostRequired && len(boosts) > 0 {
		// At least one boost clause must match (recommendation blending).
		parts = append(parts, "("+strings.Join(boosts, " | ")+")")
	} else {
		for _, b := range boosts {
			parts = append(parts, "~"+b)
		}
	}

	if q.PrefixBoost {
		if prefix := prefixTermGroup(q.Query); prefix != "" {
			parts = append(parts, fmt.Sprintf("~@%s:(%s)", prefixTextFields, prefix))
		}
	}

	if len(q.Synonyms) > 1 {
		terms := make([]string, 0, len(q.Synonyms))
		for _, syn := range q.Synonyms {
			if t := escapeQuery(syn); t != "" {
				terms = append(terms, t)
			}
		}
		if len(terms) > 0 {
			parts = append(parts, fmt.Sprintf("~@%s:(%s)", prefixTextFields, strings.Join(terms, "|")))
		}
	}

	if len(parts) == 0 {
		return "*"
	}
	return strings.Join(parts, " ")
}

// buildKNNFilter builds the pre-filter for a KNN query.
func buildKNNFilter(q *db.KNNQuery) string {
	parts := []string{"*"}
	if q.PublishedOnly {
		parts = []string{fmt.Sprintf("@%s:{true}", db.FieldPublished)}
	}
	for _, id := range q.ExcludeIDs {
		parts = append(parts, fmt.Sprintf("-@%s:{%s}", db.FieldID, tagEscaper.Replace(id)))
	}
	return strings.Join(parts, " ")
}

// fuzzyTermGroup tokenizes a query into an OR group with LD1 fuzzy matching
// on terms long enough for it to be meaningful.
func fuzzyTermGroup(query string) string {
	terms := strings.Fields(query)
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		esc := escapeQuery(t)
		if esc == "" {
			continue
		}
		if len([]rune(t)) >= fuzzyMinLen {
			esc = "%" + esc + "%"
		}
		out = append(out, esc)
	}
	return strings.Join(out, "|")
}

// prefixTermGroup turns the final query token into a prefix term, keeping
// earlier tokens as plain required terms ("jav" matches "javascript").
func prefixTermGroup(query string) string {
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return ""
	}
	out := make([]string, 0, len(terms))
	for i, t := range terms {
		esc := escapeQuery(t)
		if esc == "" {
			continue
		}
		if i == len(terms)-1 {
			esc += "*"
		}
		out = append(out, esc)
	}
	return strings.Join(out, " ")
}

func joinTagValues(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	return strings.Join(escaped, "|")
}

// --- Result parsing ---

// parseScoredResult parses WITHSCORES output.
// 3-stride: [total, key1, score1, fields1, key2, score2, fields2, ...]
func parseScoredResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+2 < len(raw); i += 3 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		scoreStr, err := raw[i+1].ToString()
		if err != nil {
			continue
		}
		score, err := strconv.ParseFloat(scoreStr, 64)
		if err != nil {
			continue
		}

		fields, err := raw[i+2].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Score:  score,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// parsePlainResult parses SORTBY output (no scores).
// 2-stride: [total, key1, fields1, key2, fields2, ...]
func parsePlainResult(raw []rueidis.RedisMessage) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return &db.SearchResult{}, nil
	}

	entries := make([]db.SearchEntry, 0, total)
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		entries = append(entries, db.SearchEntry{
			Key:    key,
			Fields: parseFieldPairs(fields),
		})
	}

	return &db.SearchResult{Total: int(total), Entries: entries}, nil
}

// parseKNNResult parses KNN output, converting cosine distance to similarity.
func parseKNNResult(raw []rueidis.RedisMessage, scoreField string) (*db.SearchResult, error) {
	sr, err := parsePlainResult(raw)
	if err != nil {
		return nil, err
	}

	for i := range sr.Entries {
		entry := &sr.Entries[i]
		if scoreStr, ok := entry.Fields[scoreField]; ok {
			if d, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				entry.Score = max(0, 1.0-d) // cosine distance -> similarity, clamped to [0,1]
			}
			delete(entry.Fields, scoreField)
		}
	}

	return sr, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

// --- Escaping ---

var tagEscaper = strings.NewReplacer(
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	" ", "\\ ",
)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

var queryEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	`@`, `\@`,
	`{`, `\{`,
	`}`, `\}`,
	`(`, `\(`,
	`)`, `\)`,
	`|`, `\|`,
	`-`, `\-`,
	`~`, `\~`,
	`*`, `\*`,
	`[`, `\[`,
	`]`, `\]`,
	`!`, `\!`,
	`%`, `\%`,
	`^`, `\^`,
	`$`, `\$`,
	`<`, `\<`,
	`>`, `\>`,
	`=`, `\=`,
	`;`, `\;`,
	`+`, `\+`,
)

// vectorToBytes serializes []float32 to the binary BLOB param format.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// BytesToVector deserializes a binary field value back to []float32.
func BytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// VectorToFieldValue serializes []float32 for storage in a hash field.
func VectorToFieldValue(v []float32) string {
	return vectorToBytes(v)
}
