package video

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/clipdeck/vidrank/internal/db"
	"github.com/clipdeck/vidrank/internal/domain"
)

// buildHashFields converts a domain document into a flat map[string]string
// for HSET. Timestamps are RFC 3339; the embedding is packed little-endian.
func buildHashFields(doc *domain.VideoDocument) map[string]string {
	m := map[string]string{
		db.FieldID:            doc.ID,
		db.FieldTitle:         doc.Title,
		db.FieldDescription:   doc.Description,
		db.FieldTags:          strings.Join(doc.Tags, ","),
		db.FieldLanguage:      doc.Language,
		db.FieldDuration:      strconv.Itoa(doc.DurationSeconds),
		db.FieldViews:         strconv.FormatInt(doc.Views, 10),
		db.FieldOwnerID:       doc.OwnerID,
		db.FieldOwnerUsername: doc.OwnerUsername,
		db.FieldOwnerFullname: doc.OwnerFullname,
		db.FieldOwnerAvatar:   doc.OwnerAvatar,
		db.FieldThumbnail:     doc.Thumbnail,
		db.FieldPublished:     strconv.FormatBool(doc.IsPublished),
		db.FieldPublishedAt:   formatTime(doc.PublishedAt),
		db.FieldCreatedAt:     formatTime(doc.CreatedAt),
		db.FieldUpdatedAt:     formatTime(doc.UpdatedAt),
	}
	if doc.Transcript != "" {
		m[db.FieldTranscript] = doc.Transcript
	}
	if doc.Embedding != nil {
		m[db.FieldEmbedding] = vectorToBytes(doc.Embedding)
	}
	return m
}

// parseHashFields converts a flat hash map back into a domain document.
// Malformed numeric or time fields fall back to zero values.
func parseHashFields(id string, m map[string]string) domain.VideoDocument {
	doc := domain.VideoDocument{
		ID:            id,
		Title:         m[db.FieldTitle],
		Description:   m[db.FieldDescription],
		Language:      m[db.FieldLanguage],
		OwnerID:       m[db.FieldOwnerID],
		OwnerUsername: m[db.FieldOwnerUsername],
		OwnerFullname: m[db.FieldOwnerFullname],
		OwnerAvatar:   m[db.FieldOwnerAvatar],
		Thumbnail:     m[db.FieldThumbnail],
		Transcript:    m[db.FieldTranscript],
	}
	if tags := m[db.FieldTags]; tags != "" {
		doc.Tags = strings.Split(tags, ",")
	}
	doc.DurationSeconds, _ = strconv.Atoi(m[db.FieldDuration])
	doc.Views, _ = strconv.ParseInt(m[db.FieldViews], 10, 64)
	doc.IsPublished = m[db.FieldPublished] == "true"
	doc.PublishedAt = parseTime(m[db.FieldPublishedAt])
	doc.CreatedAt = parseTime(m[db.FieldCreatedAt])
	doc.UpdatedAt = parseTime(m[db.FieldUpdatedAt])
	if raw := m[db.FieldEmbedding]; raw != "" {
		doc.Embedding = bytesToVector(raw)
	}
	return doc
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float,
// little-endian), the layout RediSearch expects for VECTOR fields.
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}

// bytesToVector deserializes a binary string back to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
