package wire

import (
	"encoding/json"
	"testing"
)

func TestParseDiscoverRequestIsCaseInsensitive(t *testing.T) {
	body := []byte(`{"SENDERCOMPUTERNAME":"Jordan's Mac","sendermodelname":"MacBookPro18,1","SenderId":"abc123"}`)
	got, err := ParseDiscoverRequest(body)
	if err != nil {
		t.Fatalf("ParseDiscoverRequest: %v", err)
	}
	if got.SenderComputerName != "Jordan's Mac" || got.SenderModelName != "MacBookPro18,1" || got.SenderID != "abc123" {
		t.Errorf("got = %+v", got)
	}
}

func TestParseDiscoverRequestRejectsInvalidJSON(t *testing.T) {
	if _, err := ParseDiscoverRequest([]byte(`not json`)); err == nil {
		t.Error("expected an error for malformed JSON")
	}
}

func TestParseAskRequestDecodesFilesArray(t *testing.T) {
	body := []byte(`{
		"senderComputerName": "Jordan's Mac",
		"SenderID": "abc123",
		"FILES": [
			{"filename": "photo.jpg", "filesize": 4096, "filetype": "public.jpeg", "fileisdirectory": false}
		]
	}`)
	got, err := ParseAskRequest(body)
	if err != nil {
		t.Fatalf("ParseAskRequest: %v", err)
	}
	if len(got.Files) != 1 {
		t.Fatalf("Files = %v, want 1 entry", got.Files)
	}
	f := got.Files[0]
	if f.FileName != "photo.jpg" || f.FileSize != 4096 || f.FileType != "public.jpeg" || f.FileIsDirectory {
		t.Errorf("file = %+v", f)
	}
}

func TestResponseStructsMarshalPascalCase(t *testing.T) {
	b, err := json.Marshal(UploadResponse{Success: true, FilesReceived: 2, Message: "ok"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(b) != `{"Success":true,"FilesReceived":2,"Message":"ok"}` {
		t.Errorf("got %s", b)
	}
}
