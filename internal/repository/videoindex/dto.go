package videoindex

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/clipdeck/vidrank/internal/db"
	"github.com/clipdeck/vidrank/internal/domain"
)

// buildIndexFields flattens a document into the index hash layout. Tags are
// stored twice: comma-separated for TAG filtering and space-joined for
// full-text matching. Timestamps become unix seconds so NUMERIC SORTABLE
// ordering works.
func buildIndexFields(doc *domain.VideoDocument) map[string]string {
	m := map[string]string{
		db.FieldID:            doc.ID,
		db.FieldTitle:         doc.Title,
		db.FieldDescription:   doc.Description,
		db.FieldTags:          strings.Join(doc.Tags, ","),
		db.FieldTagsText:      strings.Join(doc.Tags, " "),
		db.FieldLanguage:      doc.Language,
		db.FieldDuration:      strconv.Itoa(doc.DurationSeconds),
		db.FieldViews:         strconv.FormatInt(doc.Views, 10),
		db.FieldOwnerID:       doc.OwnerID,
		db.FieldOwnerUsername: doc.OwnerUsername,
		db.FieldOwnerFullname: doc.OwnerFullname,
		db.FieldOwnerAvatar:   doc.OwnerAvatar,
		db.FieldThumbnail:     doc.Thumbnail,
		db.FieldPublished:     strconv.FormatBool(doc.IsPublished),
		db.FieldPublishedAt:   strconv.FormatInt(unixOrZero(doc.PublishedAt), 10),
		db.FieldCreatedAt:     strconv.FormatInt(unixOrZero(doc.CreatedAt), 10),
		db.FieldUpdatedAt:     strconv.FormatInt(unixOrZero(doc.UpdatedAt), 10),
	}
	if doc.Transcript != "" {
		m[db.FieldTranscript] = doc.Transcript
	}
	if doc.Embedding != nil {
		m[db.FieldEmbedding] = vectorToBytes(doc.Embedding)
	}
	return m
}

// parseIndexFields rebuilds a document from an index hash. The embedding is
// not read back; retrieval consumers never need it.
func parseIndexFields(id string, m map[string]string) domain.VideoDocument {
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
	}
	if tags := m[db.FieldTags]; tags != "" {
		doc.Tags = strings.Split(tags, ",")
	}
	doc.DurationSeconds, _ = strconv.Atoi(m[db.FieldDuration])
	doc.Views, _ = strconv.ParseInt(m[db.FieldViews], 10, 64)
	doc.IsPublished = m[db.FieldPublished] == "true"
	doc.PublishedAt = timeFromUnix(m[db.FieldPublishedAt])
	doc.CreatedAt = timeFromUnix(m[db.FieldCreatedAt])
	doc.UpdatedAt = timeFromUnix(m[db.FieldUpdatedAt])
	return doc
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeFromUnix(s string) time.Time {
	sec, err := strconv.ParseInt(s, 10, 64)
	if err != nil || sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
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
