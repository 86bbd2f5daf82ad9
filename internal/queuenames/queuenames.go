package queuenames

const (
	ChannelSync     = "channel_sync"
	SyncAllChannels = "sync_all_channels"
	VideosCleanup   = "videos_cleanup"
)

var Priority = []string{
	ChannelSync,
	SyncAllChannels,
	VideosCleanup,
}
