package wire

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// ciObject is a parsed JSON object indexed by lower-cased key, letting the
// field getters below accept any casing a peer sends.
type ciObject map[string]gjson.Result

func parseCI(body []byte) (ciObject, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("wire: invalid JSON body")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("wire: expected a JSON object")
	}
	out := make(ciObject)
	root.ForEach(func(key, value gjson.Result) bool {
		out[strings.ToLower(key.String())] = value
		return true
	})
	return out, nil
}

func (o ciObject) str(key string) string {
	return o[strings.ToLower(key)].String()
}

func (o ciObject) i64(key string) int64 {
	return o[strings.ToLower(key)].Int()
}

func (o ciObject) boolean(key string) bool {
	return o[strings.ToLower(key)].Bool()
}

func (o ciObject) array(key string) []gjson.Result {
	return o[strings.ToLower(key)].Array()
}

// ParseDiscoverRequest decodes a /Discover body case-insensitively.
func ParseDiscoverRequest(body []byte) (DiscoverRequest, error) {
	o, err := parseCI(body)
	if err != nil {
		return DiscoverRequest{}, err
	}
	return DiscoverRequest{
		SenderComputerName: o.str("senderComputerName"),
		SenderModelName:    o.str("senderModelName"),
		SenderID:           o.str("senderID"),
	}, nil
}

// ParseAskRequest decodes an /Ask body case-insensitively.
func ParseAskRequest(body []byte) (AskRequest, error) {
	o, err := parseCI(body)
	if err != nil {
		return AskRequest{}, err
	}

	req := AskRequest{
		SenderComputerName: o.str("senderComputerName"),
		SenderID:           o.str("senderID"),
	}
	for _, f := range o.array("files") {
		fo := make(ciObject)
		f.ForEach(func(key, value gjson.Result) bool {
			fo[strings.ToLower(key.String())] = value
			return true
		})
		req.Files = append(req.Files, AskFile{
			FileName:        fo.str("fileName"),
			FileSize:        fo.i64("fileSize"),
			FileType:        fo.str("fileType"),
			FileIsDirectory: fo.boolean("fileIsDirectory"),
		})
	}
	return req, nil
}
