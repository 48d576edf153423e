package request

import (
	"bytes"
	"strconv"

	reqerrors "github.com/nevermore1994/httpreqgo/pkg/errors"
)

var chunkCRLF = []byte("\r\n")

// notStarted is the chunkSize sentinel meaning "no chunk header parsed
// yet" as distinct from 0, which means "chunk body fully consumed,
// awaiting its trailing CRLF before the next size line."
const notStarted int64 = -1

// decodeChunkedBody consumes as many complete chunks as data holds,
// invoking emit with each chunk's decoded bytes in arrival order.
// *chunkSize carries state across calls for a chunk whose header (or
// trailing CRLF) hadn't fully arrived yet; callers must initialize it
// to notStarted before the first call. It returns the undigested
// remainder a future call should be given first, whether the
// terminating zero-length chunk was seen, and a ChunkSizeError if a
// complete size line fails to parse as hex.
func decodeChunkedBody(data []byte, chunkSize *int64, emit func([]byte)) ([]byte, bool, *reqerrors.Error) {
	for len(data) > 0 {
		if *chunkSize == 0 {
			if len(data) < len(chunkCRLF) {
				return data, false, nil
			}
			if !bytes.HasPrefix(data, chunkCRLF) {
				return nil, false, reqerrors.New(reqerrors.ChunkSizeError, 0)
			}
			data = data[len(chunkCRLF):]
			*chunkSize = notStarted
			continue
		}

		if *chunkSize == notStarted {
			idx := bytes.Index(data, chunkCRLF)
			if idx < 0 {
				return data, false, nil
			}
			n, err := strconv.ParseInt(string(data[:idx]), 16, 64)
			if err != nil || n < 0 {
				return nil, false, reqerrors.New(reqerrors.ChunkSizeError, 0)
			}
			data = data[idx+len(chunkCRLF):]
			if n == 0 {
				return data, true, nil
			}
			*chunkSize = n
			continue
		}

		take := int64(len(data))
		if take > *chunkSize {
			take = *chunkSize
		}
		emit(data[:take])
		data = data[take:]
		*chunkSize -= take
	}
	return data, false, nil
}
