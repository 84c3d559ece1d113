package constant

// Media types exchanged with the catalog backend.
const (
	MimeHLSPlaylist = "application/vnd.apple.mpegurl"
	MimeMPEGTS      = "video/mp2t"
)

// MasterPlaylistName is the file name the backend serves for every asset's top-level manifest.
const MasterPlaylistName = "master.m3u8"
