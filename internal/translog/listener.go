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

package translog

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/dominikschlosser/wallet-core/internal/request"
)

// Sink persists terminal transaction logs. Implementations are
// external collaborators; Append errors are logged and swallowed.
type Sink interface {
	Append(TransactionLog) error
}

// MetadataResolver maps the disclosed document ids (and their query
// ids, when the protocol has them) to per-document JSON descriptors.
type MetadataResolver func(documentIDs, queryIDs []string) []string

// Listener serializes transport events into transaction-log
// transitions. Transport callbacks arrive on arbitrary goroutines; the
// mutex is the only synchronization point, and a failure inside any
// transition degrades the log to Error instead of propagating.
type Listener struct {
	mu       sync.Mutex
	current  TransactionLog
	recorded bool

	sink     Sink
	resolver MetadataResolver
	log      logrus.FieldLogger
}

func NewListener(sink Sink, resolver MetadataResolver, log logrus.FieldLogger) *Listener {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Listener{
		current:  New(),
		sink:     sink,
		resolver: resolver,
		log:      log,
	}
}

// Connected resets the session to a fresh Incomplete log.
func (t *Listener) Connected() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = New()
	t.recorded = false
}

// RequestReceived records the inbound leg and the relying party.
func (t *Listener) RequestReceived(protocol request.Protocol, raw []byte, readerAuth *request.ReaderAuth) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current = t.current.WithRequest(protocol, raw).WithRelyingParty(readerAuth)
	if t.current.Status == StatusError {
		t.log.WithField("protocol", protocol).Warn("translog: unsupported request type recorded as error")
	}
}

// ResponseSent records the outbound leg and persists the terminal log.
// cause is non-nil when response generation failed.
func (t *Listener) ResponseSent(resp *request.Response, cause error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var metadata []string
	if resp != nil && t.resolver != nil {
		metadata = t.resolveMetadata(resp)
	}
	t.current = t.current.WithResponse(resp, metadata, cause)
	t.persist()
}

// resolveMetadata calls the injected resolver, downgrading panics to a
// logged warning so a metadata bug cannot lose the log entry.
func (t *Listener) resolveMetadata(resp *request.Response) (metadata []string) {
	defer func() {
		if r := recover(); r != nil {
			t.log.WithField("panic", r).Warn("translog: metadata resolver failed")
			metadata = nil
		}
	}()
	return t.resolver(resp.DocumentIDs, resp.QueryIDs)
}

// TransportError forces the Error state and persists the log.
func (t *Listener) TransportError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.log.WithError(err).Debug("translog: transport error")
	t.current = t.current.WithError()
	t.persist()
}

// Stopped emits a terminal record when a presentation is cancelled
// before completing. A log that already reached a terminal state is
// left as recorded.
func (t *Listener) Stopped() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.recorded {
		return
	}
	if t.current.Status == StatusIncomplete {
		t.current = t.current.WithError()
	}
	t.persist()
}

// Current returns a snapshot of the session log.
func (t *Listener) Current() TransactionLog {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// persist appends to the sink. Called with the mutex held. Sink
// failures never abort the session.
func (t *Listener) persist() {
	if t.recorded || t.sink == nil {
		t.recorded = true
		return
	}
	if err := t.sink.Append(t.current); err != nil {
		t.log.WithError(err).Warn("translog: persisting transaction log failed")
	}
	t.recorded = true
}
