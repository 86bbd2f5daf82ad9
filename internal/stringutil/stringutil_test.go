package stringutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var caseConversionTests = []struct {
	pascalCase string
	snakeCase  string
}{
	{"ID", "id"},
	{"ExternalID", "external_id"},
	{"Title", "title"},
	{"OwnerID", "owner_id"},
	{"SourceIdentifier", "source_identifier"},
	{"ChannelExternalID", "channel_external_id"},
	{"PublishedAt", "published_at"},
	{"DurationSeconds", "duration_seconds"},
	{"ViewCount", "view_count"},
	{"LikeCount", "like_count"},
	{"ThumbnailURL", "thumbnail_url"},
	{"MetadataUpdatedAt", "metadata_updated_at"},
	{"LastSyncedAt", "last_synced_at"},
	{"NewestPublishedAt", "newest_published_at"},
	{"KnownVideoCount", "known_video_count"},
	{"CreatedAt", "created_at"},
	{"QueueName", "queue_name"},
	{"Payload", "payload"},
	{"RunAfter", "run_after"},
	{"FailureDelaySeconds", "failure_delay_seconds"},
	{"AttemptsRemaining", "attempts_remaining"},
	{"ReservedAt", "reserved_at"},
	{"ReservedUntil", "reserved_until"},
	{"FinishedAt", "finished_at"},
	{"ErrorMessage", "error_message"},
}

func TestPascalToSnake(t *testing.T) {
	for _, tc := range caseConversionTests {
		t.Run(tc.pascalCase, func(t *testing.T) {
			a := assert.New(t)
			a.Equal(tc.snakeCase, PascalToSnake(tc.pascalCase))
		})
	}
}

func BenchmarkPascalToSnake(b *testing.B) {
	for _, tc := range caseConversionTests {
		b.Run(tc.pascalCase, func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				PascalToSnake(tc.pascalCase)
			}
		})
	}
}
