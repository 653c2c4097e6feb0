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

package dcql

import (
	"testing"
)

func queries(ids ...QueryID) map[QueryID]CredentialQuery {
	m := make(map[QueryID]CredentialQuery, len(ids))
	for _, id := range ids {
		m[id] = CredentialQuery{ID: id}
	}
	return m
}

func available(ids ...QueryID) map[QueryID]bool {
	m := make(map[QueryID]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

func boolPtr(b bool) *bool { return &b }

func TestDetermineRequestedDocumentsNoSets(t *testing.T) {
	creds := queries("pid", "mdl", "diploma")
	result := DetermineRequestedDocuments(creds, nil, available("pid", "diploma"))

	if len(result) != 2 {
		t.Fatalf("expected 2 entries, got %d: %v", len(result), result)
	}
	for _, id := range []QueryID{"pid", "diploma"} {
		if _, ok := result[id]; !ok {
			t.Errorf("expected %s in result", id)
		}
	}
	if _, ok := result["mdl"]; ok {
		t.Error("mdl is not available and must not appear")
	}
}

func TestDetermineRequestedDocumentsRequiredUnsatisfiable(t *testing.T) {
	creds := queries("pid", "mdl", "diploma")
	sets := []CredentialSetQuery{
		{Options: [][]QueryID{{"mdl"}}}, // required by default, mdl unavailable
		{Required: boolPtr(false), Options: [][]QueryID{{"diploma"}}},
	}

	result := DetermineRequestedDocuments(creds, sets, available("pid", "diploma"))
	if len(result) != 0 {
		t.Fatalf("expected empty map for unsatisfiable required set, got %v", result)
	}
}

func TestDetermineRequestedDocumentsFirstOptionWins(t *testing.T) {
	creds := queries("pid", "mdl")
	sets := []CredentialSetQuery{
		{Options: [][]QueryID{{"pid"}, {"mdl"}}},
	}

	// Both options satisfiable, declared order decides.
	result := DetermineRequestedDocuments(creds, sets, available("pid", "mdl"))
	if len(result) != 1 {
		t.Fatalf("expected 1 entry, got %v", result)
	}
	if _, ok := result["pid"]; !ok {
		t.Errorf("expected first option pid, got %v", result)
	}
}

func TestDetermineRequestedDocumentsLaterOptionUsed(t *testing.T) {
	creds := queries("pid", "mdl")
	sets := []CredentialSetQuery{
		{Options: [][]QueryID{{"pid"}, {"mdl"}}},
	}

	result := DetermineRequestedDocuments(creds, sets, available("mdl"))
	if _, ok := result["mdl"]; !ok || len(result) != 1 {
		t.Fatalf("expected fallback to second option mdl, got %v", result)
	}
}

func TestDetermineRequestedDocumentsOptionalSetOmitted(t *testing.T) {
	creds := queries("pid", "diploma")
	sets := []CredentialSetQuery{
		{Options: [][]QueryID{{"pid"}}},
		{Required: boolPtr(false), Options: [][]QueryID{{"diploma"}}},
	}

	result := DetermineRequestedDocuments(creds, sets, available("pid"))
	if len(result) != 1 {
		t.Fatalf("expected only the required set, got %v", result)
	}
	if _, ok := result["pid"]; !ok {
		t.Errorf("expected pid, got %v", result)
	}
}

func TestDetermineRequestedDocumentsMultiIDOption(t *testing.T) {
	creds := queries("pid", "mdl")
	sets := []CredentialSetQuery{
		{Options: [][]QueryID{{"pid", "mdl"}}},
	}

	// Option needs both ids; only one available.
	result := DetermineRequestedDocuments(creds, sets, available("pid"))
	if len(result) != 0 {
		t.Fatalf("expected empty map, option needs both ids, got %v", result)
	}

	result = DetermineRequestedDocuments(creds, sets, available("pid", "mdl"))
	if len(result) != 2 {
		t.Fatalf("expected both ids, got %v", result)
	}
}

func TestDetermineRequestedDocumentsDeduplicates(t *testing.T) {
	creds := queries("pid", "mdl")
	sets := []CredentialSetQuery{
		{Options: [][]QueryID{{"pid"}}},
		{Options: [][]QueryID{{"pid", "mdl"}}},
	}

	result := DetermineRequestedDocuments(creds, sets, available("pid", "mdl"))
	if len(result) != 2 {
		t.Fatalf("pid appears in two satisfied sets and must collapse, got %v", result)
	}
}
