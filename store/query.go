package store

import "fmt"

// NameExpression is a matching predicate over the name component of a
// mailbox path. The set of variants is closed: ExactName, Wildcard, and
// MatchAll. Backends may translate a variant into a native query predicate
// (SQL LIKE, regex) instead of calling Matches, as long as the semantics
// are identical.
type NameExpression interface {
	// Matches reports whether the candidate mailbox name satisfies the
	// expression. Matching is case-sensitive and covers the whole name.
	Matches(name string) bool
}

// ExactName matches a mailbox name by strict equality.
// No character is special, including '%'.
type ExactName string

func (e ExactName) Matches(name string) bool { return string(e) == name }

func (e ExactName) String() string { return fmt.Sprintf("ExactName(%s)", string(e)) }

// matchAll matches every mailbox name.
type matchAll struct{}

func (matchAll) Matches(string) bool { return true }

func (matchAll) String() string { return "MatchAll" }

// MatchAll is the expression a query falls back to when none is supplied.
var MatchAll NameExpression = matchAll{}

// Query selects mailboxes of a single tenant whose name satisfies an
// expression. Queries are always user-bound: both namespace and user are
// fixed, so a query can never cross tenants regardless of its expression.
type Query struct {
	namespace  string
	user       string
	expression NameExpression
}

// Namespace returns the namespace the query is bound to.
func (q Query) Namespace() string { return q.namespace }

// User returns the user the query is bound to.
func (q Query) User() string { return q.user }

// Expression returns the name predicate, never nil.
func (q Query) Expression() NameExpression { return q.expression }

// Matches reports whether a mailbox belongs to the query's tenant and its
// name satisfies the expression. This is the reference predicate backends
// must reproduce.
func (q Query) Matches(m Mailbox) bool {
	return m.Path.Namespace == q.namespace &&
		m.Path.User == q.user &&
		q.expression.Matches(m.Path.Name)
}

func (q Query) String() string {
	return fmt.Sprintf("Query{namespace=%s user=%s expression=%v}", q.namespace, q.user, q.expression)
}

// QueryBuilder assembles a Query. Namespace and user must be supplied as a
// pair, either from an existing path or explicitly; Build rejects anything
// else so that a half-bound query fails at construction instead of
// returning silently-empty results at query time.
type QueryBuilder struct {
	namespace    string
	user         string
	hasNamespace bool
	hasUser      bool
	expression   NameExpression
}

// NewQuery returns an empty builder.
func NewQuery() *QueryBuilder {
	return &QueryBuilder{}
}

// From binds namespace and user from an existing path. The path's name is
// ignored; use Expression to set the predicate.
func (b *QueryBuilder) From(path MailboxPath) *QueryBuilder {
	return b.UserAndNamespace(path.Namespace, path.User)
}

// UserAndNamespace binds the tenant explicitly.
func (b *QueryBuilder) UserAndNamespace(namespace, user string) *QueryBuilder {
	b.namespace = namespace
	b.hasNamespace = true
	b.user = user
	b.hasUser = true
	return b
}

// Namespace binds only the namespace. Build fails unless User is also called.
func (b *QueryBuilder) Namespace(namespace string) *QueryBuilder {
	b.namespace = namespace
	b.hasNamespace = true
	return b
}

// User binds only the user. Build fails unless Namespace is also called.
func (b *QueryBuilder) User(user string) *QueryBuilder {
	b.user = user
	b.hasUser = true
	return b
}

// Expression sets the name predicate. Unset defaults to MatchAll.
func (b *QueryBuilder) Expression(expr NameExpression) *QueryBuilder {
	b.expression = expr
	return b
}

// Build validates the builder and returns the query.
func (b *QueryBuilder) Build() (Query, error) {
	if !b.hasNamespace || !b.hasUser {
		return Query{}, fmt.Errorf("%w: namespace and user must be supplied together (namespace set: %t, user set: %t)",
			ErrMalformedQuery, b.hasNamespace, b.hasUser)
	}
	expr := b.expression
	if expr == nil {
		expr = MatchAll
	}
	return Query{namespace: b.namespace, user: b.user, expression: expr}, nil
}

// PathLike builds the query equivalent of searching with a raw path whose
// name is interpreted as a wildcard pattern. This is the convenience form
// used by protocol code that appends '%' to a parent name.
func PathLike(path MailboxPath) Query {
	return Query{
		namespace:  path.Namespace,
		user:       path.User,
		expression: Wildcard(path.Name),
	}
}

// ChildrenOf builds the query matching every descendant of the mailbox
// under the given delimiter. A '%' inside the parent name is itself a
// metacharacter and can over-match; callers needing strictness re-check
// candidates with HasChildName.
func ChildrenOf(path MailboxPath, delimiter rune) Query {
	return Query{
		namespace:  path.Namespace,
		user:       path.User,
		expression: Wildcard(path.Name + string(delimiter) + "%"),
	}
}
