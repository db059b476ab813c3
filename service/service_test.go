package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/flowkit/config"
	"github.com/c360/flowkit/debugger"
	"github.com/c360/flowkit/errors"
	"github.com/c360/flowkit/flowstore"
	"github.com/c360/flowkit/metric"
	"github.com/c360/flowkit/natsclient"
	"github.com/c360/flowkit/node"
	"github.com/c360/flowkit/pin"
)

// memKV is an in-memory stand-in for the NATS KV bucket.
type memKV struct {
	mu   sync.Mutex
	data map[string][]byte
	revs map[string]uint64
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte), revs: make(map[string]uint64)}
}

func (m *memKV) Create(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; ok {
		return 0, errors.ErrAlreadyExists
	}
	m.data[key] = value
	m.revs[key] = 1
	return 1, nil
}

func (m *memKV) Get(_ context.Context, key string) (*natsclient.KVEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[key]
	if !ok {
		return nil, errors.ErrKeyNotFound
	}
	return &natsclient.KVEntry{Key: key, Value: value, Revision: m.revs[key]}, nil
}

func (m *memKV) Put(_ context.Context, key string, value []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.revs[key]++
	return m.revs[key], nil
}

func (m *memKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[key]; !ok {
		return errors.ErrKeyNotFound
	}
	delete(m.data, key)
	delete(m.revs, key)
	return nil
}

func (m *memKV) Keys(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func exec(name string) pin.Spec {
	return pin.Spec{Name: name, Category: pin.CategoryExec}
}

func testRegistry(t *testing.T) *node.Registry {
	t.Helper()
	registry := node.NewRegistry()
	require.NoError(t, registry.Register(node.Registration{
		Definition: node.Definition{
			Kind:       "gate",
			InputPins:  []pin.Spec{exec("In"), {Name: "Condition", Category: pin.CategoryData, SubCategory: "bool"}},
			OutputPins: []pin.Spec{exec("Out")},
		},
	}))
	require.NoError(t, registry.Register(node.Registration{
		Definition: node.Definition{
			Kind:             "sequence",
			InputPins:        []pin.Spec{exec("In")},
			CanUserAddOutput: true,
		},
	}))
	return registry
}

func testService(t *testing.T) (*Service, *httptest.Server) {
	t.Helper()

	cfg := config.NewSafeConfig(config.Defaults())
	store := flowstore.NewStoreWithKV(newMemKV())
	dbg, err := debugger.New("", nil, nil)
	require.NoError(t, err)

	svc, err := New(cfg, testRegistry(t), store,
		WithMetrics(metric.NewRegistry()),
		WithDebugger(dbg),
	)
	require.NoError(t, err)

	server := httptest.NewServer(svc.Handler())
	t.Cleanup(server.Close)
	return svc, server
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func createFlow(t *testing.T, base, name string) *flowstore.Flow {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, base+"/api/flows", createFlowRequest{Name: name})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var flow flowstore.Flow
	require.NoError(t, json.Unmarshal(body, &flow))
	return &flow
}

func addNode(t *testing.T, base, flowID, kind string) addNodeResponse {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost,
		fmt.Sprintf("%s/api/flows/%s/nodes", base, flowID),
		addNodeRequest{Kind: kind})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var result addNodeResponse
	require.NoError(t, json.Unmarshal(body, &result))
	return result
}

// pinRef finds a pin by name on a node inside a flow document.
func pinRef(t *testing.T, flow *flowstore.Flow, nodeID, pinName string) pin.Ref {
	t.Helper()
	for _, fn := range flow.Nodes {
		if fn.Node.ID != nodeID {
			continue
		}
		for _, p := range fn.Pins {
			if p.Name() == pinName {
				return pin.Ref{NodeID: nodeID, PinID: p.ID}
			}
		}
	}
	t.Fatalf("pin %q not found on node %q", pinName, nodeID)
	return pin.Ref{}
}

func TestListKinds(t *testing.T) {
	_, server := testService(t)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/kinds", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var kinds []kindSummary
	require.NoError(t, json.Unmarshal(body, &kinds))
	require.Len(t, kinds, 2)

	names := []string{kinds[0].Kind, kinds[1].Kind}
	assert.Contains(t, names, "gate")
	assert.Contains(t, names, "sequence")
}

func TestFlowLifecycle(t *testing.T) {
	_, server := testService(t)

	flow := createFlow(t, server.URL, "test flow")
	assert.NotEmpty(t, flow.ID)
	assert.Equal(t, int64(1), flow.Version)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/flows", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summaries []flowSummary
	require.NoError(t, json.Unmarshal(body, &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, flow.ID, summaries[0].ID)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/flows/"+flow.ID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodDelete, server.URL+"/api/flows/"+flow.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/flows/"+flow.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAddNodeAllocatesPins(t *testing.T) {
	_, server := testService(t)
	flow := createFlow(t, server.URL, "pins")

	result := addNode(t, server.URL, flow.ID, "gate")
	require.NotEmpty(t, result.NodeID)
	require.Len(t, result.Flow.Nodes, 1)

	names := make([]string, 0, 3)
	for _, p := range result.Flow.Nodes[0].Pins {
		names = append(names, p.Name())
	}
	assert.ElementsMatch(t, []string{"In", "Condition", "Out"}, names)
	assert.Greater(t, result.Flow.Version, flow.Version)
}

func TestConnectAndDisconnect(t *testing.T) {
	_, server := testService(t)
	flow := createFlow(t, server.URL, "wiring")

	first := addNode(t, server.URL, flow.ID, "gate")
	second := addNode(t, server.URL, flow.ID, "gate")

	source := pinRef(t, second.Flow, first.NodeID, "Out")
	target := pinRef(t, second.Flow, second.NodeID, "In")

	resp, body := doJSON(t, http.MethodPost,
		server.URL+"/api/flows/"+flow.ID+"/connections",
		connectionRequest{Source: source, Target: target})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var connected flowstore.Flow
	require.NoError(t, json.Unmarshal(body, &connected))
	require.Len(t, connected.Connections, 1)
	assert.Equal(t, source, connected.Connections[0].Source)
	assert.Equal(t, target, connected.Connections[0].Target)

	resp, body = doJSON(t, http.MethodDelete,
		server.URL+"/api/flows/"+flow.ID+"/connections",
		connectionRequest{Source: source, Target: target})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var disconnected flowstore.Flow
	require.NoError(t, json.Unmarshal(body, &disconnected))
	assert.Empty(t, disconnected.Connections)
}

func TestReconstructEndpoint(t *testing.T) {
	_, server := testService(t)
	flow := createFlow(t, server.URL, "reconstruct")
	result := addNode(t, server.URL, flow.ID, "gate")

	t.Run("steady state reports no change", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/flows/%s/nodes/%s/reconstruct", server.URL, flow.ID, result.NodeID), nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var rr reconstructResponse
		require.NoError(t, json.Unmarshal(body, &rr))
		assert.False(t, rr.Changed)
	})

	t.Run("full reconstruction reports change", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/flows/%s/nodes/%s/reconstruct", server.URL, flow.ID, result.NodeID),
			reconstructRequest{Full: true})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var rr reconstructResponse
		require.NoError(t, json.Unmarshal(body, &rr))
		assert.True(t, rr.Changed)
	})
}

func TestUserInstancePins(t *testing.T) {
	_, server := testService(t)
	flow := createFlow(t, server.URL, "user pins")
	result := addNode(t, server.URL, flow.ID, "sequence")

	pinURL := fmt.Sprintf("%s/api/flows/%s/nodes/%s/pins", server.URL, flow.ID, result.NodeID)

	resp, body := doJSON(t, http.MethodPost, pinURL, userPinRequest{Direction: pin.DirectionOutput})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var added struct {
		Pin  pin.Spec        `json:"pin"`
		Flow *flowstore.Flow `json:"flow"`
	}
	require.NoError(t, json.Unmarshal(body, &added))
	assert.Equal(t, "0", added.Pin.Name)
	require.Len(t, added.Flow.Nodes, 1)
	assert.Len(t, added.Flow.Nodes[0].Pins, 2) // In + the new output

	t.Run("kind without user outputs rejects", func(t *testing.T) {
		other := addNode(t, server.URL, flow.ID, "gate")
		resp, _ := doJSON(t, http.MethodPost,
			fmt.Sprintf("%s/api/flows/%s/nodes/%s/pins", server.URL, flow.ID, other.NodeID),
			userPinRequest{Direction: pin.DirectionOutput})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("remove renumbers away the pin", func(t *testing.T) {
		resp, body := doJSON(t, http.MethodDelete, pinURL+"/0?direction=output", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var updated flowstore.Flow
		require.NoError(t, json.Unmarshal(body, &updated))
		for _, fn := range updated.Nodes {
			if fn.Node.ID == result.NodeID {
				assert.Len(t, fn.Pins, 1)
			}
		}
	})
}

func TestErrorMapping(t *testing.T) {
	_, server := testService(t)

	t.Run("missing flow is 404", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/flows/nope", nil)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("unknown kind is 404", func(t *testing.T) {
		flow := createFlow(t, server.URL, "errors")
		resp, _ := doJSON(t, http.MethodPost,
			server.URL+"/api/flows/"+flow.ID+"/nodes",
			addNodeRequest{Kind: "no-such-kind"})
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("invalid connection reference is 400", func(t *testing.T) {
		flow := createFlow(t, server.URL, "bad refs")
		resp, _ := doJSON(t, http.MethodPost,
			server.URL+"/api/flows/"+flow.ID+"/connections",
			connectionRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		resp, err := http.Post(server.URL+"/api/flows", "application/json",
			strings.NewReader("{not json"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("nameless flow is 400", func(t *testing.T) {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/flows", createFlowRequest{})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestBreakpointEndpoints(t *testing.T) {
	_, server := testService(t)

	toggle := func(t *testing.T, url string) bool {
		t.Helper()
		resp, body := doJSON(t, http.MethodPost, url, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		var result map[string]bool
		require.NoError(t, json.Unmarshal(body, &result))
		return result["enabled"]
	}

	nodeURL := server.URL + "/api/debug/nodes/n1/breakpoint"
	assert.True(t, toggle(t, nodeURL))
	assert.False(t, toggle(t, nodeURL))

	pinURL := server.URL + "/api/debug/nodes/n1/pins/Out/breakpoint"
	assert.True(t, toggle(t, pinURL))

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/debug/resume", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRemoveNodeClearsBreakpoints(t *testing.T) {
	svc, server := testService(t)
	flow := createFlow(t, server.URL, "cleanup")
	added := addNode(t, server.URL, flow.ID, "gate")
	nodeID := added.NodeID

	svc.debugger.ToggleNodeBreakpoint(nodeID)
	svc.debugger.TogglePinBreakpoint(nodeID, "Out")
	require.True(t, svc.debugger.IsNodeBreakpointEnabled(nodeID))
	require.True(t, svc.debugger.IsPinBreakpointEnabled(nodeID, "Out"))

	resp, body := doJSON(t, http.MethodDelete,
		fmt.Sprintf("%s/api/flows/%s/nodes/%s", server.URL, flow.ID, nodeID), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	assert.False(t, svc.debugger.IsNodeBreakpointEnabled(nodeID))
	assert.False(t, svc.debugger.IsPinBreakpointEnabled(nodeID, "Out"))
}

func TestWebsocketNotifications(t *testing.T) {
	svc, server := testService(t)
	flow := createFlow(t, server.URL, "notify")

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	defer conn.Close()

	require.Eventually(t, func() bool {
		return svc.Hub().ClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	addNode(t, server.URL, flow.ID, "gate")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event Event
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, "pins_changed", event.Type)
	assert.NotEmpty(t, event.NodeID)
}

func TestServiceLifecycle(t *testing.T) {
	cfg := config.Defaults()
	cfg.HTTP.Addr = "127.0.0.1:0"
	svc, err := New(config.NewSafeConfig(cfg), testRegistry(t), flowstore.NewStoreWithKV(newMemKV()))
	require.NoError(t, err)

	assert.Equal(t, StatusStopped, svc.Status())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	assert.Equal(t, StatusRunning, svc.Status())

	// Double start is rejected while running.
	err = svc.Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))

	require.NoError(t, svc.Stop())
	assert.Equal(t, StatusStopped, svc.Status())

	// Stop is idempotent.
	require.NoError(t, svc.Stop())

	info := svc.GetStatus()
	assert.Equal(t, "flowkit-editor", info.Name)
	assert.Equal(t, StatusStopped, info.Status)
}
