package service

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func TestExportMetadataContract(t *testing.T) {
	schemaPath, err := filepath.Abs(filepath.Join("testdata", "metadata.schema.json"))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile("file://" + schemaPath)
	require.NoError(t, err)

	ef := newExportFixture(t)
	_, submissionID := ef.completedSubmission(t, 1, 2)

	result, err := ef.svc.Export(context.Background(), submissionID)
	require.NoError(t, err)
	_, contents := readArchive(t, result.Path)

	var payload interface{}
	require.NoError(t, json.Unmarshal(contents[MetadataEntry], &payload))
	require.NoError(t, schema.Validate(payload))
}
