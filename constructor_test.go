package harbor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMailer(ctx context.Context) *mailer {
	if ctx == nil {
		return nil
	}

	return &mailer{host: "constructed"}
}

func newMailService(m *mailer) (*mailService, error) {
	return &mailService{mailer: m}, nil
}

type relayParams struct {
	In

	Primary *mailer   `name:"primary"`
	Backup  *mailer   `name:"backup" optional:"true"`
	Audit   *auditLog `optional:"true"`
	Ctx     context.Context

	ignored *mailer
}

type relay struct {
	primary *mailer
	backup  *mailer
	audit   *auditLog
	hasCtx  bool
}

func newRelay(p relayParams) *relay {
	return &relay{primary: p.Primary, backup: p.Backup, audit: p.Audit, hasCtx: p.Ctx != nil}
}

func TestConstructorBean_ResultTypeAndContext(t *testing.T) {
	c := newTestContainer(t)
	require.NoError(t, RegisterConstructor(c, "mailer", newMailer, ApplicationScoped()))
	deploy(t, c)

	b, ok := c.Bean("mailer")
	require.True(t, ok)
	assert.True(t, containsType(b.Types(), TypeOf[*mailer]()))
	assert.Equal(t, ScopeApplication, b.Scope())

	assert.Equal(t, "constructed", MustGet[*mailer](context.Background(), c).host)
}

func TestConstructorBean_ParametersAreInjected(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		MustConstructorBean("mailer", newMailer, ApplicationScoped()),
		MustConstructorBean("mailService", newMailService),
	)
	deploy(t, c)

	svc := MustGet[*mailService](context.Background(), c)
	require.NotNil(t, svc.mailer)
	assert.Equal(t, "constructed", svc.mailer.host)
}

func TestConstructorBean_ParameterObject(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		Provide("primary", func(context.Context) (*mailer, error) {
			return &mailer{host: "primary"}, nil
		}, WithName("primary")),
		MustConstructorBean("relay", newRelay),
	)
	deploy(t, c)

	r := MustGet[*relay](context.Background(), c)
	assert.Equal(t, "primary", r.primary.host)
	assert.Nil(t, r.backup)
	assert.Nil(t, r.audit)
	assert.True(t, r.hasCtx)

	b, _ := c.Bean("relay")
	var members []string
	for _, ip := range b.InjectionPoints() {
		members = append(members, ip.Member)
	}
	assert.Equal(t, []string{"Primary", "Backup", "Audit"}, members)
}

func TestConstructorBean_OptionalParameterPresent(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(
		Provide("primary", func(context.Context) (*mailer, error) {
			return &mailer{host: "primary"}, nil
		}, WithName("primary")),
		Provide("backup", func(context.Context) (*mailer, error) {
			return &mailer{host: "backup"}, nil
		}, WithName("backup"), ApplicationScoped()),
		MustConstructorBean("relay", newRelay),
	)
	deploy(t, c)

	r := MustGet[*relay](context.Background(), c)
	require.NotNil(t, r.backup)
	assert.Equal(t, "backup", r.backup.host)
}

func TestConstructorBean_MissingRequiredParameterFailsDeployment(t *testing.T) {
	c := newTestContainer(t)
	c.MustRegister(MustConstructorBean("relay", newRelay))

	err := c.Deploy(context.Background())
	assert.ErrorIs(t, err, ErrDeployment)
	assert.ErrorIs(t, err, ErrUnsatisfied)
}

func TestConstructorBean_ConstructorError(t *testing.T) {
	boom := errors.New("connection refused")
	c := newTestContainer(t)
	require.NoError(t, RegisterConstructor(c, "mailer", func() (*mailer, error) {
		return nil, boom
	}))
	deploy(t, c)

	_, err := Get[*mailer](context.Background(), c)
	assert.ErrorIs(t, err, boom)
}

func TestConstructorBean_Invalid(t *testing.T) {
	type pointerParams struct {
		In

		Mailer *mailer
	}

	tests := []struct {
		name        string
		constructor any
	}{
		{name: "nil", constructor: nil},
		{name: "not a function", constructor: "mailer"},
		{name: "no results", constructor: func() {}},
		{name: "error only", constructor: func() error { return nil }},
		{name: "second result not error", constructor: func() (*mailer, int) { return nil, 0 }},
		{name: "too many results", constructor: func() (*mailer, int, error) { return nil, 0, nil }},
		{name: "pointer parameter object", constructor: func(*pointerParams) *mailer { return nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ConstructorBean("bad", tt.constructor)
			assert.ErrorIs(t, err, ErrInvalidBeanSentinel)

			c := newTestContainer(t)
			assert.ErrorIs(t, RegisterConstructor(c, "bad", tt.constructor), ErrInvalidBeanSentinel)
			assert.Panics(t, func() { MustConstructorBean("bad", tt.constructor) })
		})
	}
}
