package builder

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sqlmapper/cache"
	"sqlmapper/internal/errs"
	"sqlmapper/internal/registry"
	"sqlmapper/introspect"
	"sqlmapper/model"
	"sqlmapper/xmltree"
)

type account struct {
	ID     int
	Name   string
	Owner  person
	Orders []order
}

type person struct {
	Name string
}

type order struct {
	ID    int
	Total float64
}

type fixture struct {
	reg   *registry.Registry
	types *introspect.Types
	opts  Options
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	types := introspect.NewTypes()
	require.NoError(t, types.RegisterValue("app.Account", account{}))
	require.NoError(t, types.RegisterValue("app.Person", person{}))
	require.NoError(t, types.RegisterValue("app.Order", order{}))
	return &fixture{reg: registry.New(), types: types}
}

func (f *fixture) load(t *testing.T, resource, xml string) error {
	t.Helper()
	doc, err := xmltree.Parse([]byte(xml), f.opts.Variables)
	require.NoError(t, err)
	b := NewDocumentBuilder(f.reg, f.types, introspect.Default{}, RawScript{}, resource, doc, f.opts)
	return b.Parse()
}

func (f *fixture) mustLoad(t *testing.T, resource, xml string) {
	t.Helper()
	require.NoError(t, f.load(t, resource, xml))
}

func TestSimpleSelect(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <select id="findById" parameterType="int" resultType="app.Account">
    select *
    from account
    where id = #{id}
  </select>
</mapper>`)

	stmt, ok := f.reg.Statement("app.Accounts.findById")
	require.True(t, ok)
	assert.Equal(t, model.CommandSelect, stmt.Command)
	assert.Equal(t, "accounts.xml", stmt.Resource)
	assert.Equal(t, "select * from account where id = #{id}", stmt.Source.SQL())

	// Select defaults: cached, no flush.
	assert.True(t, stmt.UseCache)
	assert.False(t, stmt.FlushCache)
	assert.Equal(t, model.NoKey{}, stmt.KeyGen)

	// Inline shapes are private to the statement, never registered.
	require.Len(t, stmt.ResultShapes, 1)
	assert.Equal(t, "app.Accounts.findById-Inline", stmt.ResultShapes[0].ID)
	assert.False(t, f.reg.HasResultShape("app.Accounts.findById-Inline"))
	require.NotNil(t, stmt.ParameterShape)
	assert.Equal(t, "app.Accounts.findById-Inline", stmt.ParameterShape.ID)

	assert.Equal(t, 0, f.reg.PendingCount())
}

func TestUpdateDefaultsFlushCache(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <update id="rename">update account set name = #{name}</update>
</mapper>`)

	stmt, ok := f.reg.Statement("app.Accounts.rename")
	require.True(t, ok)
	assert.True(t, stmt.FlushCache)
	assert.False(t, stmt.UseCache)
}

func TestMapperRequiresNamespace(t *testing.T) {
	f := newFixture(t)

	err := f.load(t, "bad.xml", `<mapper><select id="q">select 1</select></mapper>`)
	var be *errs.BuildError
	require.ErrorAs(t, err, &be)
	assert.Contains(t, err.Error(), "namespace cannot be empty")

	err = f.load(t, "bad2.xml", `<notmapper/>`)
	assert.Error(t, err)
}

func TestDeclaredIdsRejectForeignNamespace(t *testing.T) {
	f := newFixture(t)

	err := f.load(t, "bad.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="other.shape" type="app.Account"/>
</mapper>`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dots are not allowed")

	// The current namespace prefix is tolerated on declarations.
	f2 := newFixture(t)
	f2.mustLoad(t, "ok.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="app.Accounts.shape" type="app.Account"/>
</mapper>`)
	assert.True(t, f2.reg.HasResultShape("app.Accounts.shape"))
}

func TestResultMapBindings(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="accountMap" type="app.Account">
    <id property="id" column="account_id"/>
    <result property="name" column="account_name"/>
  </resultMap>
  <select id="findAll" resultMap="accountMap">select * from account</select>
</mapper>`)

	shape, ok := f.reg.ResultShape("app.Accounts.accountMap")
	require.True(t, ok)

	want := []model.ResultBinding{
		{Property: "id", Column: "account_id"},
		{Property: "name", Column: "account_name"},
	}
	got := make([]model.ResultBinding, len(shape.Bindings))
	for i, b := range shape.Bindings {
		got[i] = model.ResultBinding{Property: b.Property, Column: b.Column}
		if i == 0 {
			assert.True(t, b.IsID)
		}
		// Binding types are inherited from the target type's slots.
		assert.NotNil(t, b.Type)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}

	stmt, ok := f.reg.Statement("app.Accounts.findAll")
	require.True(t, ok)
	require.Len(t, stmt.ResultShapes, 1)
	assert.Same(t, shape, stmt.ResultShapes[0])
}

func TestResultMapExtendsMerge(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="base" type="app.Account">
    <constructor>
      <idArg column="id" javaType="int" name="id"/>
    </constructor>
    <result property="name" column="name"/>
  </resultMap>
  <resultMap id="derived" type="app.Account" extends="base">
    <result property="name" column="full_name"/>
  </resultMap>
</mapper>`)

	shape, ok := f.reg.ResultShape("app.Accounts.derived")
	require.True(t, ok)
	require.Len(t, shape.Bindings, 2)

	// Own binding wins over the inherited one with the same property.
	assert.Equal(t, "full_name", shape.Bindings[0].Column)

	// The parent's constructor binding is inherited since the child declares
	// no constructor of its own.
	inherited := shape.Bindings[1]
	assert.True(t, inherited.IsConstructor)
	assert.True(t, inherited.IsID)
	assert.Equal(t, "id", inherited.Column)
}

func TestExtendsSuppressesInheritedConstructor(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="base" type="app.Account">
    <constructor>
      <idArg column="id" javaType="int" name="id"/>
      <arg column="name" javaType="string" name="name"/>
    </constructor>
  </resultMap>
  <resultMap id="derived" type="app.Account" extends="base">
    <constructor>
      <idArg column="pk" javaType="int" name="id"/>
    </constructor>
  </resultMap>
</mapper>`)

	shape, ok := f.reg.ResultShape("app.Accounts.derived")
	require.True(t, ok)

	// Declaring any constructor args drops every inherited constructor arg,
	// even non-conflicting ones.
	require.Len(t, shape.Bindings, 1)
	assert.Equal(t, "pk", shape.Bindings[0].Column)
}

func TestExtendsForwardReferenceWithinDocument(t *testing.T) {
	f := newFixture(t)

	// The child precedes its parent; one retry pass at end of load links it.
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="derived" type="app.Account" extends="base">
    <result property="name" column="full_name"/>
  </resultMap>
  <resultMap id="base" type="app.Account">
    <id property="id" column="id"/>
  </resultMap>
</mapper>`)

	shape, ok := f.reg.ResultShape("app.Accounts.derived")
	require.True(t, ok)
	assert.Len(t, shape.Bindings, 2)
	assert.Equal(t, 0, f.reg.PendingCount())
}

func TestForwardReferenceAcrossDocuments(t *testing.T) {
	f := newFixture(t)

	// The statement references a shape from a document loaded later.
	f.mustLoad(t, "queries.xml", `
<mapper namespace="app.Queries">
  <select id="findAccounts" resultMap="app.Shapes.accountMap">select * from account</select>
</mapper>`)
	assert.Equal(t, 1, f.reg.PendingCount())
	assert.False(t, f.reg.HasStatement("app.Queries.findAccounts"))

	f.mustLoad(t, "shapes.xml", `
<mapper namespace="app.Shapes">
  <resultMap id="accountMap" type="app.Account">
    <id property="id" column="id"/>
  </resultMap>
</mapper>`)

	// The retry pass after the second load resolves the parked statement.
	assert.Equal(t, 0, f.reg.PendingCount())
	stmt, ok := f.reg.Statement("app.Queries.findAccounts")
	require.True(t, ok)
	require.Len(t, stmt.ResultShapes, 1)
	assert.Equal(t, "app.Shapes.accountMap", stmt.ResultShapes[0].ID)
}

func TestDuplicateResultShapeIsFatal(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "a.xml", `
<mapper namespace="app.A">
  <resultMap id="m" type="app.Account"/>
</mapper>`)

	err := f.load(t, "b.xml", `
<mapper namespace="app.A">
  <resultMap id="m" type="app.Account"/>
</mapper>`)
	require.Error(t, err)
	assert.False(t, errs.IsIncomplete(err))
	assert.Contains(t, err.Error(), "already registered")
}

func TestReloadingResourceIsNoOp(t *testing.T) {
	f := newFixture(t)
	doc := `
<mapper namespace="app.A">
  <resultMap id="m" type="app.Account"/>
</mapper>`

	f.mustLoad(t, "a.xml", doc)
	// Same resource again: no duplicate-shape error.
	f.mustLoad(t, "a.xml", doc)
}

func TestNestedAssociationRegistersShape(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="accountMap" type="app.Account">
    <id property="id" column="id"/>
    <association property="owner">
      <result property="name" column="owner_name"/>
    </association>
  </resultMap>
</mapper>`)

	shape, ok := f.reg.ResultShape("app.Accounts.accountMap")
	require.True(t, ok)
	require.Len(t, shape.Bindings, 2)

	nested := shape.Bindings[1]
	require.NotEmpty(t, nested.NestedShapeID)

	inner, ok := f.reg.ResultShape(nested.NestedShapeID)
	require.True(t, ok)
	// The association's type is inferred from the enclosing slot.
	assert.Equal(t, "person", inner.Type.Name())
	require.Len(t, inner.Bindings, 1)
	assert.Equal(t, "owner_name", inner.Bindings[0].Column)
}

func TestCollectionRequiresElementType(t *testing.T) {
	f := newFixture(t)

	// A writable slot on the enclosing type is enough.
	f.mustLoad(t, "ok.xml", `
<mapper namespace="app.OK">
  <resultMap id="accountMap" type="app.Account">
    <collection property="orders" ofType="app.Order">
      <id property="id" column="order_id"/>
    </collection>
  </resultMap>
</mapper>`)

	// No ofType, no javaType, no resultMap, and no matching slot: fatal, and
	// never parked for retry.
	f2 := newFixture(t)
	err := f2.load(t, "bad.xml", `
<mapper namespace="app.Bad">
  <resultMap id="accountMap" type="app.Account">
    <collection property="nonexistent">
      <id property="id" column="id"/>
    </collection>
  </resultMap>
</mapper>`)
	require.Error(t, err)
	assert.False(t, errs.IsIncomplete(err))
	assert.Contains(t, err.Error(), "ambiguous collection type")
	assert.Equal(t, 0, f2.reg.PendingCount())
}

func TestCollectionWithNestedSelectSkipsValidation(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="accountMap" type="app.Account">
    <collection property="orders" column="{accountId=id,region=region}" select="findOrders"/>
  </resultMap>
  <select id="findOrders" resultType="app.Order">select * from orders</select>
</mapper>`)

	shape, ok := f.reg.ResultShape("app.Accounts.accountMap")
	require.True(t, ok)
	require.Len(t, shape.Bindings, 1)

	b := shape.Bindings[0]
	assert.Equal(t, "app.Accounts.findOrders", b.NestedSelectID)

	want := []model.ResultBinding{
		{Property: "accountId", Column: "id"},
		{Property: "region", Column: "region"},
	}
	if diff := cmp.Diff(want, b.Composites); diff != "" {
		t.Errorf("composite columns mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscriminatorCases(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="personMap" type="app.Person">
    <result property="name" column="name"/>
  </resultMap>
  <resultMap id="accountMap" type="app.Account">
    <id property="id" column="id"/>
    <discriminator column="kind" javaType="string">
      <case value="personal" resultMap="personMap"/>
      <case value="external" resultMap="app.Other.externalMap"/>
    </discriminator>
  </resultMap>
</mapper>`)

	shape, ok := f.reg.ResultShape("app.Accounts.accountMap")
	require.True(t, ok)
	require.NotNil(t, shape.Discriminator)
	assert.Equal(t, "kind", shape.Discriminator.Column)

	// Case values qualify as references: short names get the namespace,
	// foreign ids pass through.
	assert.Equal(t, map[string]string{
		"personal": "app.Accounts.personMap",
		"external": "app.Other.externalMap",
	}, shape.Discriminator.Cases)
}

func TestParameterMap(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <parameterMap id="renameParams" type="app.Account">
    <parameter property="id" mode="IN"/>
    <parameter property="name" javaType="string" mode="INOUT"/>
  </parameterMap>
  <update id="rename" parameterMap="renameParams">update account set name = #{name} where id = #{id}</update>
</mapper>`)

	shape, ok := f.reg.ParameterShape("app.Accounts.renameParams")
	require.True(t, ok)
	require.Len(t, shape.Bindings, 2)
	assert.Equal(t, model.ModeIn, shape.Bindings[0].Mode)
	assert.Equal(t, model.ModeInOut, shape.Bindings[1].Mode)
	assert.Equal(t, "int", shape.Bindings[0].Type.Name())

	stmt, ok := f.reg.Statement("app.Accounts.rename")
	require.True(t, ok)
	assert.Same(t, shape, stmt.ParameterShape)
}

func TestIncludeExpansion(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <sql id="columns">${alias}.id, ${alias}.name</sql>
  <select id="findAll" resultType="app.Account">
    select <include refid="columns"><property name="alias" value="a"/></include>
    from account a
  </select>
</mapper>`)

	stmt, ok := f.reg.Statement("app.Accounts.findAll")
	require.True(t, ok)
	assert.Equal(t, "select a.id, a.name from account a", stmt.Source.SQL())
}

func TestIncludeNestedFragments(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <sql id="inner">${col}</sql>
  <sql id="outer">select <include refid="inner"/> from ${tbl}</sql>
  <select id="q">
    <include refid="outer">
      <property name="col" value="id"/>
      <property name="tbl" value="account"/>
    </include>
  </select>
</mapper>`)

	stmt, ok := f.reg.Statement("app.Accounts.q")
	require.True(t, ok)
	assert.Equal(t, "select id from account", stmt.Source.SQL())
}

func TestIncludeDuplicatePropertyIsFatal(t *testing.T) {
	f := newFixture(t)

	err := f.load(t, "bad.xml", `
<mapper namespace="app.Bad">
  <sql id="cols">id</sql>
  <select id="q">
    select <include refid="cols">
      <property name="x" value="1"/>
      <property name="x" value="2"/>
    </include>
  </select>
</mapper>`)
	require.Error(t, err)
	assert.False(t, errs.IsIncomplete(err))
	assert.Contains(t, err.Error(), "defined twice")
}

func TestIncludeMissingFragmentDefersStatement(t *testing.T) {
	f := newFixture(t)

	f.mustLoad(t, "queries.xml", `
<mapper namespace="app.Queries">
  <select id="q">select <include refid="app.Fragments.columns"/> from account</select>
</mapper>`)
	assert.Equal(t, 1, f.reg.PendingCount())

	f.mustLoad(t, "fragments.xml", `
<mapper namespace="app.Fragments">
  <sql id="columns">id, name</sql>
</mapper>`)

	assert.Equal(t, 0, f.reg.PendingCount())
	stmt, ok := f.reg.Statement("app.Queries.q")
	require.True(t, ok)
	assert.Equal(t, "select id, name from account", stmt.Source.SQL())
}

func TestSelectKeySynthesis(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <insert id="create" parameterType="app.Account">
    <selectKey keyProperty="id" resultType="int" order="BEFORE">
      select nextval('account_seq')
    </selectKey>
    insert into account (id, name) values (#{id}, #{name})
  </insert>
</mapper>`)

	stmt, ok := f.reg.Statement("app.Accounts.create")
	require.True(t, ok)

	// The selectKey body is stripped from the owning statement.
	assert.Equal(t, "insert into account (id, name) values (#{id}, #{name})", stmt.Source.SQL())

	gen, ok := stmt.KeyGen.(*model.SelectKey)
	require.True(t, ok)
	assert.True(t, gen.RunBefore)
	assert.Equal(t, "app.Accounts.create!selectKey", gen.StatementID)

	// The synthesized statement is a registered read-only select.
	key, ok := f.reg.Statement("app.Accounts.create!selectKey")
	require.True(t, ok)
	assert.Equal(t, model.CommandSelect, key.Command)
	assert.Equal(t, "select nextval('account_seq')", key.Source.SQL())
	assert.Equal(t, "id", key.KeyProperty)
	assert.Equal(t, model.NoKey{}, key.KeyGen)
	assert.Same(t, key, gen.Statement)
}

func TestUseGeneratedKeysDefaults(t *testing.T) {
	f := newFixture(t)
	f.opts.UseGeneratedKeys = true
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <insert id="create" keyProperty="id">insert into account (name) values (#{name})</insert>
  <update id="rename">update account set name = #{name}</update>
  <insert id="createQuiet" useGeneratedKeys="false">insert into account_log values (1)</insert>
</mapper>`)

	ins, _ := f.reg.Statement("app.Accounts.create")
	assert.Equal(t, model.NativeKey{}, ins.KeyGen)
	assert.Equal(t, "id", ins.KeyProperty)

	// The global default applies to inserts only.
	upd, _ := f.reg.Statement("app.Accounts.rename")
	assert.Equal(t, model.NoKey{}, upd.KeyGen)

	// An explicit attribute beats the global default.
	quiet, _ := f.reg.Statement("app.Accounts.createQuiet")
	assert.Equal(t, model.NoKey{}, quiet.KeyGen)
}

func TestVendorTieBreak(t *testing.T) {
	doc := `
<mapper namespace="app.Accounts">
  <select id="now" databaseId="postgres">select now()</select>
  <select id="now">select current_timestamp</select>
</mapper>`

	// With a session vendor the tagged variant wins and the untagged one is
	// skipped even though it is registered last in document order.
	f := newFixture(t)
	f.opts.Vendor = "postgres"
	f.mustLoad(t, "accounts.xml", doc)

	stmt, ok := f.reg.Statement("app.Accounts.now")
	require.True(t, ok)
	assert.Equal(t, "postgres", stmt.Vendor)
	assert.Equal(t, "select now()", stmt.Source.SQL())

	// Without a vendor only the untagged variant registers.
	f2 := newFixture(t)
	f2.mustLoad(t, "accounts.xml", doc)

	stmt, ok = f2.reg.Statement("app.Accounts.now")
	require.True(t, ok)
	assert.Equal(t, "", stmt.Vendor)
	assert.Equal(t, "select current_timestamp", stmt.Source.SQL())
}

func TestVendorTieBreakForFragments(t *testing.T) {
	doc := `
<mapper namespace="app.Accounts">
  <sql id="lock" databaseId="postgres">for update</sql>
  <sql id="lock">lock in share mode</sql>
  <select id="q">select * from account <include refid="lock"/></select>
</mapper>`

	f := newFixture(t)
	f.opts.Vendor = "postgres"
	f.mustLoad(t, "accounts.xml", doc)
	stmt, _ := f.reg.Statement("app.Accounts.q")
	assert.Equal(t, "select * from account for update", stmt.Source.SQL())

	f2 := newFixture(t)
	f2.mustLoad(t, "accounts.xml", doc)
	stmt, _ = f2.reg.Statement("app.Accounts.q")
	assert.Equal(t, "select * from account lock in share mode", stmt.Source.SQL())
}

func TestCacheElement(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <cache eviction="FIFO" size="256" flushInterval="60000" blocking="true"/>
  <select id="findAll" resultType="app.Account">select * from account</select>
</mapper>`)

	c, ok := f.reg.Cache("app.Accounts")
	require.True(t, ok)
	assert.Equal(t, "app.Accounts", c.ID())

	// Outermost first: blocking, serialized (read/write default), scheduled,
	// bounded, eviction.
	_, isBlocking := c.(*cache.Blocking)
	assert.True(t, isBlocking)

	stmt, _ := f.reg.Statement("app.Accounts.findAll")
	assert.Same(t, c, stmt.Cache)
}

func TestCacheReadOnlySkipsSerialization(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <cache readOnly="true"/>
</mapper>`)

	c, ok := f.reg.Cache("app.Accounts")
	require.True(t, ok)
	for cur := c; ; {
		_, isSerialized := cur.(*cache.Serialized)
		assert.False(t, isSerialized)
		d, ok := cur.(cache.Decorator)
		if !ok {
			break
		}
		cur = d.Inner()
	}
}

func TestCacheCustomBase(t *testing.T) {
	f := newFixture(t)
	custom := cache.NewPerpetual("app.Accounts")
	f.opts.CacheBases = map[string]cache.BaseFunc{
		"REDIS": func(id string) cache.Cache { return custom },
	}
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <cache type="REDIS"/>
</mapper>`)

	c, ok := f.reg.Cache("app.Accounts")
	require.True(t, ok)
	base := c
	for {
		d, ok := base.(cache.Decorator)
		if !ok {
			break
		}
		base = d.Inner()
	}
	assert.Same(t, cache.Cache(custom), base)

	f2 := newFixture(t)
	err := f2.load(t, "bad.xml", `
<mapper namespace="app.Bad">
  <cache type="UNKNOWN"/>
</mapper>`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown cache type "UNKNOWN"`)
}

func TestCacheRefDefersStatements(t *testing.T) {
	f := newFixture(t)

	// The referenced namespace has no cache yet: both the cache-ref and the
	// statement park.
	f.mustLoad(t, "queries.xml", `
<mapper namespace="app.Queries">
  <cache-ref namespace="app.Shared"/>
  <select id="findAll" resultType="app.Account">select * from account</select>
</mapper>`)
	assert.Equal(t, 2, f.reg.PendingCount())
	assert.False(t, f.reg.HasStatement("app.Queries.findAll"))

	f.mustLoad(t, "shared.xml", `
<mapper namespace="app.Shared">
  <cache/>
</mapper>`)

	assert.Equal(t, 0, f.reg.PendingCount())
	shared, ok := f.reg.Cache("app.Shared")
	require.True(t, ok)

	stmt, ok := f.reg.Statement("app.Queries.findAll")
	require.True(t, ok)
	assert.Same(t, shared, stmt.Cache)

	ref, ok := f.reg.CacheRef("app.Queries")
	require.True(t, ok)
	assert.Equal(t, "app.Shared", ref)
}

func TestCacheRefWithoutNamespaceIsFatal(t *testing.T) {
	f := newFixture(t)
	err := f.load(t, "bad.xml", `
<mapper namespace="app.Bad">
  <cache-ref/>
</mapper>`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "requires a namespace attribute")
}

func TestAutoMappingTriState(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="def" type="app.Account"/>
  <resultMap id="on" type="app.Account" autoMapping="true"/>
  <resultMap id="off" type="app.Account" autoMapping="false"/>
</mapper>`)

	def, _ := f.reg.ResultShape("app.Accounts.def")
	assert.Equal(t, model.AutoDefault, def.AutoMapping)
	on, _ := f.reg.ResultShape("app.Accounts.on")
	assert.Equal(t, model.AutoOn, on.AutoMapping)
	off, _ := f.reg.ResultShape("app.Accounts.off")
	assert.Equal(t, model.AutoOff, off.AutoMapping)
}

func TestStatementHints(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <select id="scan" fetchSize="500" timeout="30" statementType="STATEMENT"
          resultSetType="FORWARD_ONLY" resultOrdered="true" resultSets="accounts,orders">
    select * from account
  </select>
</mapper>`)

	stmt, ok := f.reg.Statement("app.Accounts.scan")
	require.True(t, ok)
	assert.Equal(t, 500, stmt.FetchSize)
	assert.Equal(t, 30, stmt.Timeout)
	assert.Equal(t, model.StatementPlain, stmt.StatementType)
	assert.Equal(t, model.ResultSetForwardOnly, stmt.ResultSetKind)
	assert.True(t, stmt.ResultOrdered)
	assert.Equal(t, []string{"accounts", "orders"}, stmt.ResultSets)
}

func TestMultipleResultShapeRefs(t *testing.T) {
	f := newFixture(t)
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <resultMap id="a" type="app.Account"/>
  <resultMap id="b" type="app.Order"/>
  <select id="multi" resultMap="a, b" resultSets="x,y">select 1; select 2</select>
</mapper>`)

	stmt, ok := f.reg.Statement("app.Accounts.multi")
	require.True(t, ok)
	require.Len(t, stmt.ResultShapes, 2)
	assert.Equal(t, "app.Accounts.a", stmt.ResultShapes[0].ID)
	assert.Equal(t, "app.Accounts.b", stmt.ResultShapes[1].ID)
}

func TestPlaceholderDefaultsInAttributes(t *testing.T) {
	f := newFixture(t)
	f.opts.Variables = map[string]string{
		"placeholder.enable-default-value": "true",
		"accountTable":                     "account",
	}
	f.mustLoad(t, "accounts.xml", `
<mapper namespace="app.Accounts">
  <select id="q">select * from ${accountTable} limit ${maxRows:100}</select>
</mapper>`)

	stmt, ok := f.reg.Statement("app.Accounts.q")
	require.True(t, ok)
	assert.Equal(t, "select * from account limit 100", stmt.Source.SQL())
}
