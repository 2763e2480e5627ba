package obs

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
)

// obs-websocket v5 opcodes used by the publisher.
const (
	opHello                = 0
	opIdentify             = 1
	opIdentified           = 2
	opRequest              = 6
	opRequestResponse      = 7
	opRequestBatch         = 8
	opRequestBatchResponse = 9
)

// rpcVersion is the protocol revision negotiated during Identify.
const rpcVersion = 1

// message is the envelope of every obs-websocket frame.
type message struct {
	Op int             `json:"op"`
	D  json.RawMessage `json:"d"`
}

type helloData struct {
	OBSWebSocketVersion string `json:"obsWebSocketVersion"`
	RPCVersion          int    `json:"rpcVersion"`
	Authentication      *struct {
		Challenge string `json:"challenge"`
		Salt      string `json:"salt"`
	} `json:"authentication"`
}

type identifyData struct {
	RPCVersion         int    `json:"rpcVersion"`
	Authentication     string `json:"authentication,omitempty"`
	EventSubscriptions int    `json:"eventSubscriptions"`
}

type requestData struct {
	RequestType string      `json:"requestType"`
	RequestID   string      `json:"requestId"`
	RequestData interface{} `json:"requestData,omitempty"`
}

type requestStatus struct {
	Result  bool   `json:"result"`
	Code    int    `json:"code"`
	Comment string `json:"comment,omitempty"`
}

type requestResponseData struct {
	RequestType   string          `json:"requestType"`
	RequestID     string          `json:"requestId"`
	RequestStatus requestStatus   `json:"requestStatus"`
	ResponseData  json.RawMessage `json:"responseData,omitempty"`
}

// batchEntry is one request inside a RequestBatch. Batch members carry no
// ids of their own; the batch is correlated as a whole.
type batchEntry struct {
	RequestType string      `json:"requestType"`
	RequestData interface{} `json:"requestData,omitempty"`
}

type requestBatchData struct {
	RequestID     string       `json:"requestId"`
	HaltOnFailure bool         `json:"haltOnFailure"`
	Requests      []batchEntry `json:"requests"`
}

type requestBatchResponseData struct {
	RequestID string                `json:"requestId"`
	Results   []requestResponseData `json:"results"`
}

// authToken computes the obs-websocket authentication string from the
// configured password and the server's salt and challenge.
func authToken(password, salt, challenge string) string {
	secret := sha256.Sum256([]byte(password + salt))
	secretB64 := base64.StdEncoding.EncodeToString(secret[:])
	proof := sha256.Sum256([]byte(secretB64 + challenge))
	return base64.StdEncoding.EncodeToString(proof[:])
}

func encodeMessage(op int, d interface{}) ([]byte, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(message{Op: op, D: payload})
}
