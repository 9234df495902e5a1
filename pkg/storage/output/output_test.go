/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolvePath(t *testing.T) {
	require.Equal(t, "out/participant.json", ResolvePath("out/participant.json", "ignored.json"))
	require.Equal(t, filepath.Join("out", "default.json"), ResolvePath("out", "default"))
	require.Equal(t, filepath.Join("out", "default.json"), ResolvePath("out", "default.json"))
}

func TestFileSinkSave(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink()

	document := map[string]interface{}{"id": "urn:uuid:123", "type": "VerifiableCredential"}

	require.NoError(t, sink.Save(dir, "LegalParticipant", document))

	raw, err := os.ReadFile(filepath.Join(dir, "LegalParticipant.json"))
	require.NoError(t, err)

	saved := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(raw, &saved))
	require.Equal(t, "urn:uuid:123", saved["id"])
}

func TestFileSinkLiteralPath(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "credential.json")

	require.NoError(t, NewFileSink().Save(target, "ignored", map[string]interface{}{"id": "x"}))

	_, err := os.Stat(target)
	require.NoError(t, err)
}
