// Copyright 2025 Dominik Schlosser
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package presentation is the composition root: it routes inbound
// requests to the protocol processor, holds pending authorizations
// while the UI collects consent, and dispatches generated responses to
// the transport.
package presentation

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dominikschlosser/wallet-core/internal/dcapi"
	"github.com/dominikschlosser/wallet-core/internal/device"
	"github.com/dominikschlosser/wallet-core/internal/keys"
	"github.com/dominikschlosser/wallet-core/internal/openid4vp"
	"github.com/dominikschlosser/wallet-core/internal/request"
	"github.com/dominikschlosser/wallet-core/internal/translog"
)

// EventKind tags presentation lifecycle events.
type EventKind int

const (
	EventConnected EventKind = iota
	EventRequestReceived
	EventResponseSent
	EventDisconnected
	EventError
)

// Event is delivered to registered listeners. Dispatch is serial and
// in registration order; events are never reordered.
type Event struct {
	Kind      EventKind
	Protocol  request.Protocol
	PendingID string
	Response  *request.Response
	Err       error
}

// Listener receives presentation events.
type Listener interface {
	OnEvent(Event)
}

// Processor is the per-protocol request processor contract.
type Processor interface {
	Process(request.Request) request.ProcessedRequest
}

// responseGenerator is satisfied by every processed-request success
// type.
type responseGenerator interface {
	GenerateResponse(request.DisclosedDocuments, keys.Algorithm) request.ResponseResult
}

// Transport sends a generated response back to the verifier.
type Transport interface {
	Send(ctx context.Context, resp *request.Response) error
}

// Pending is a processed request awaiting user authorization,
// addressable by its correlation id.
type Pending struct {
	ID        string
	Protocol  request.Protocol
	Processed request.ProcessedRequest
}

// RequestedDocuments exposes the matched documents for consent UI.
func (p *Pending) RequestedDocuments() []request.RequestedDocument {
	return requestedDocumentsOf(p.Processed)
}

func requestedDocumentsOf(processed request.ProcessedRequest) []request.RequestedDocument {
	switch s := processed.(type) {
	case *device.ProcessedDeviceRequest:
		return s.RequestedDocuments
	case *openid4vp.ProcessedDCQLRequest:
		return s.RequestedDocuments
	case *openid4vp.ProcessedPERequest:
		return s.RequestedDocuments
	case *dcapi.ProcessedDCAPIRequest:
		return s.RequestedDocuments
	default:
		return nil
	}
}

// Config wires a Manager. Processors and Transports are keyed by
// protocol; TransactionLog is optional.
type Config struct {
	Processors     map[request.Protocol]Processor
	Transports     map[request.Protocol]Transport
	TransactionLog *translog.Listener
	Logger         logrus.FieldLogger
}

// Manager routes requests, owns the pending-authorization registry and
// fans events out to listeners.
type Manager struct {
	mu         sync.Mutex
	processors map[request.Protocol]Processor
	transports map[request.Protocol]Transport
	listeners  []Listener
	pending    map[string]*Pending

	translog *translog.Listener
	log      logrus.FieldLogger

	// disconnect belongs to the current session; a new session gets a
	// fresh Once so a stale watcher goroutine cannot consume it.
	disconnect *sync.Once
}

func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Processors) == 0 {
		return nil, fmt.Errorf("presentation: config has no processors")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{
		processors: cfg.Processors,
		transports: cfg.Transports,
		pending:    make(map[string]*Pending),
		translog:   cfg.TransactionLog,
		log:        log,
	}, nil
}

// AddListener registers a listener. Fan-out order follows registration
// order.
func (m *Manager) AddListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, l)
}

// emit dispatches an event serially to every listener.
func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.Unlock()

	for _, l := range listeners {
		l.OnEvent(ev)
	}
}

// StartPresentation routes an inbound request to its processor. On
// success it returns a pending authorization the UI resolves with
// Authorize or Cancel. The context governs the session: cancellation
// emits exactly one Disconnected event and terminates the log.
func (m *Manager) StartPresentation(ctx context.Context, req request.Request) (*Pending, error) {
	if !req.Protocol.Valid() {
		return nil, fmt.Errorf("presentation: unknown protocol %q", req.Protocol)
	}
	processor, ok := m.processors[req.Protocol]
	if !ok {
		return nil, fmt.Errorf("presentation: no processor registered for %s", req.Protocol)
	}

	once := new(sync.Once)
	m.mu.Lock()
	m.disconnect = once
	m.mu.Unlock()

	if m.translog != nil {
		m.translog.Connected()
	}
	m.emit(Event{Kind: EventConnected, Protocol: req.Protocol})

	go m.watchContext(ctx, req.Protocol, once)

	processed := processor.Process(req)

	if m.translog != nil {
		m.translog.RequestReceived(req.Protocol, rawRequestBytes(req), readerAuthOf(processed))
	}

	if failed, ok := processed.(request.Failed); ok {
		if m.translog != nil {
			m.translog.ResponseSent(nil, failed.Cause)
		}
		m.emit(Event{Kind: EventError, Protocol: req.Protocol, Err: failed.Cause})
		return nil, fmt.Errorf("presentation: processing request: %w", failed.Cause)
	}

	p := &Pending{
		ID:        uuid.NewString(),
		Protocol:  req.Protocol,
		Processed: processed,
	}
	m.mu.Lock()
	m.pending[p.ID] = p
	m.mu.Unlock()

	m.emit(Event{Kind: EventRequestReceived, Protocol: req.Protocol, PendingID: p.ID})
	return p, nil
}

// watchContext turns context cancellation into the session disconnect.
// It holds the Once of the session it was started for, so cancelling an
// old context never consumes a later session's disconnect.
func (m *Manager) watchContext(ctx context.Context, protocol request.Protocol, once *sync.Once) {
	<-ctx.Done()
	m.disconnectOnce(once, protocol)
}

func (m *Manager) disconnectOnce(once *sync.Once, protocol request.Protocol) {
	once.Do(func() {
		if m.translog != nil {
			m.translog.Stopped()
		}
		m.emit(Event{Kind: EventDisconnected, Protocol: protocol})
	})
}

// Authorize resolves a pending authorization with the user-approved
// disclosures, generates the response and dispatches it. A
// UserAuthRequired result keeps the pending entry alive so the caller
// can retry with unlock material; both terminal results remove it.
func (m *Manager) Authorize(ctx context.Context, pendingID string, disclosed request.DisclosedDocuments, alg keys.Algorithm) (request.ResponseResult, error) {
	m.mu.Lock()
	p, ok := m.pending[pendingID]
	m.mu.Unlock()
	if !ok {
		return request.ResponseResult{}, fmt.Errorf("presentation: no pending authorization %s", pendingID)
	}

	generator, ok := p.Processed.(responseGenerator)
	if !ok {
		return request.ResponseResult{}, fmt.Errorf("presentation: pending %s cannot generate responses", pendingID)
	}

	result := generator.GenerateResponse(disclosed, alg)
	switch result.Kind {
	case request.ResultUserAuthRequired:
		return result, nil
	case request.ResultFailure:
		m.removePending(pendingID)
		if m.translog != nil {
			m.translog.ResponseSent(nil, result.Cause)
		}
		m.emit(Event{Kind: EventError, Protocol: p.Protocol, Err: result.Cause})
		return result, nil
	case request.ResultSuccess:
		m.removePending(pendingID)
		if err := m.dispatch(ctx, result.Response); err != nil {
			if m.translog != nil {
				m.translog.ResponseSent(nil, err)
			}
			m.emit(Event{Kind: EventError, Protocol: p.Protocol, Err: err})
			return request.Failure(err), nil
		}
		if m.translog != nil {
			m.translog.ResponseSent(result.Response, nil)
		}
		m.emit(Event{Kind: EventResponseSent, Protocol: p.Protocol, Response: result.Response})
		return result, nil
	default:
		return request.ResponseResult{}, fmt.Errorf("presentation: unexpected result kind %s", result.Kind)
	}
}

// Cancel abandons a pending authorization and terminates the session.
func (m *Manager) Cancel(pendingID string) {
	m.mu.Lock()
	p, ok := m.pending[pendingID]
	if ok {
		delete(m.pending, pendingID)
	}
	once := m.disconnect
	m.mu.Unlock()
	if !ok || once == nil {
		return
	}
	m.disconnectOnce(once, p.Protocol)
}

func (m *Manager) removePending(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

// dispatch hands the response to the protocol transport. A protocol
// without a registered transport leaves dispatch to the caller.
func (m *Manager) dispatch(ctx context.Context, resp *request.Response) error {
	transport, ok := m.transports[resp.Protocol]
	if !ok {
		m.log.WithField("protocol", resp.Protocol).Debug("presentation: no transport registered, response returned to caller")
		return nil
	}
	return transport.Send(ctx, resp)
}

// rawRequestBytes extracts the wire request for the transaction log.
func rawRequestBytes(req request.Request) []byte {
	switch payload := req.Payload.(type) {
	case device.Payload:
		return payload.DeviceRequest
	case dcapi.Payload:
		return payload.RequestJSON
	case openid4vp.Payload:
		if payload.RequestObject != nil {
			return payload.RequestObject.Raw
		}
	}
	return nil
}

// readerAuthOf surfaces the reader-auth verdict shared by the matched
// documents, nil when processing failed or the reader did not
// authenticate.
func readerAuthOf(processed request.ProcessedRequest) *request.ReaderAuth {
	docs := requestedDocumentsOf(processed)
	if len(docs) == 0 {
		return nil
	}
	return docs[0].ReaderAuth
}
