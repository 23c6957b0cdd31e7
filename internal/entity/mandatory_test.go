package entity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xrmkit.io/xrmkit/internal/entity"
	"xrmkit.io/xrmkit/internal/metadata"
	apperrors "xrmkit.io/xrmkit/internal/pkg/errors"
	"xrmkit.io/xrmkit/internal/provider"
	"xrmkit.io/xrmkit/internal/testutil"
)

func TestCheckMandatories_Account(t *testing.T) {
	session, _ := newSession(t)
	e, _ := newEntity(t, session, "account")

	ok, missing := e.CheckMandatories()
	assert.False(t, ok)
	// owneridtype defers to ownerid, versionnumber can never be written.
	assert.Equal(t, []entity.MissingField{
		{LogicalName: "name", Reason: metadata.RequiredApplicationRequired},
		{LogicalName: "ownerid", Reason: metadata.RequiredSystemRequired},
	}, missing)

	require.NoError(t, e.Set("name", "Contoso"))
	require.NoError(t, e.Set("ownerid", entity.NewReference("systemuser", "u-1")))

	ok, missing = e.CheckMandatories()
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestCheckMandatories_NameOnly(t *testing.T) {
	mock := provider.NewMockRetriever()
	mock.Seed("lead", testutil.BuildMetadata("lead",
		testutil.Attr{Name: "name", Create: true, Read: true, RequiredLevel: "ApplicationRequired"},
		testutil.Writable("description"),
	))
	e, _ := newEntity(t, provider.NewSession(mock), "lead")

	ok, missing := e.CheckMandatories()
	assert.False(t, ok)
	require.Len(t, missing, 1)
	assert.Equal(t, "name", missing[0].LogicalName)

	require.NoError(t, e.Set("name", ""))
	ok, _ = e.CheckMandatories()
	assert.False(t, ok, "empty string counts as unset")

	require.NoError(t, e.Set("name", "Prospect"))
	ok, missing = e.CheckMandatories()
	assert.True(t, ok)
	assert.Empty(t, missing)
}

func TestCheckMandatories_SubAttributes(t *testing.T) {
	tests := []struct {
		name  string
		attrs []testutil.Attr
		want  []entity.MissingField
	}{
		{
			name: "sub-attribute reported through its parent once",
			attrs: []testutil.Attr{
				{Name: "customerid", Create: true, Update: true, Read: true, RequiredLevel: "SystemRequired", Targets: []string{"account"}},
				{Name: "customeridtype", Create: true, Read: true, RequiredLevel: "SystemRequired", AttributeOf: "customerid"},
			},
			want: []entity.MissingField{{LogicalName: "customerid", Reason: metadata.RequiredSystemRequired}},
		},
		{
			name: "optional parent still checked for a mandatory child",
			attrs: []testutil.Attr{
				{Name: "regardingid", Create: true, Read: true, Targets: []string{"account"}},
				{Name: "regardingidtype", Read: true, RequiredLevel: "ApplicationRequired", AttributeOf: "regardingid"},
			},
			want: []entity.MissingField{{LogicalName: "regardingid", Reason: metadata.RequiredApplicationRequired}},
		},
		{
			name: "parent missing from schema",
			attrs: []testutil.Attr{
				{Name: "orphanname", Create: true, Read: true, RequiredLevel: "SystemRequired", AttributeOf: "orphan"},
			},
		},
		{
			name: "unwritable parent",
			attrs: []testutil.Attr{
				{Name: "stateid", Read: true},
				{Name: "stateidname", Create: true, Read: true, RequiredLevel: "SystemRequired", AttributeOf: "stateid"},
			},
		},
		{
			name: "unknown required level is mandatory",
			attrs: []testutil.Attr{
				{Name: "code", Create: true, Read: true, RequiredLevel: "BusinessRequired"},
			},
			want: []entity.MissingField{{LogicalName: "code", Reason: "BusinessRequired"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := provider.NewMockRetriever()
			mock.Seed("thing", testutil.BuildMetadata("thing", tt.attrs...))
			e, _ := newEntity(t, provider.NewSession(mock), "thing")

			ok, missing := e.CheckMandatories()
			assert.Equal(t, len(tt.want) == 0, ok)
			assert.Equal(t, tt.want, missing)
		})
	}
}

func TestCheckMandatories_Incident(t *testing.T) {
	session, _ := newSession(t)
	incident, err := entity.NewKind("incident").New(context.Background(), session, "", entity.WithReporter(&entity.Recorder{}))
	require.NoError(t, err)
	contact, _ := newEntity(t, session, "contact")

	_, missing := incident.CheckMandatories()
	assert.Equal(t, []string{"title", "customerid"}, names(missing))

	require.NoError(t, incident.Set("customerid", contact))
	_, missing = incident.CheckMandatories()
	assert.Equal(t, []string{"title"}, names(missing))
}

func TestMandatoryError(t *testing.T) {
	session, _ := newSession(t)
	e, _ := newEntity(t, session, "account")

	_, missing := e.CheckMandatories()
	err := e.MandatoryError(missing)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeMandatoryMissing, appErr.Code)
	assert.Equal(t, 422, appErr.HTTPStatus)
	require.Len(t, appErr.FieldErrors, 2)
	assert.Equal(t, "name", appErr.FieldErrors[0].Field)
	assert.Equal(t, "ApplicationRequired", appErr.FieldErrors[0].Code)

	assert.NoError(t, e.MandatoryError(nil))
}

func names(missing []entity.MissingField) []string {
	out := make([]string, len(missing))
	for i, m := range missing {
		out[i] = m.LogicalName
	}
	return out
}
