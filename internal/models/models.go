// Package models declares the blog application's tables on top of the orm
// package.
package models

import (
	"context"
	"fmt"
	"strings"

	"github.com/saltyorg/dbkit/internal/orm"
)

var User = orm.MustDeclare(orm.Declaration{
	Type:  "User",
	Table: "users",
	Fields: []*orm.Field{
		orm.String("id", orm.PrimaryKey(), orm.DefaultFunc(orm.NextIDDefault), orm.DDL("varchar(50)")),
		orm.String("email", orm.Updatable(false), orm.DDL("varchar(50)")),
		orm.String("password", orm.DDL("varchar(50)")),
		orm.Boolean("admin"),
		orm.String("name", orm.DDL("varchar(50)")),
		orm.String("image", orm.DDL("varchar(500)")),
		orm.Float("created_at", orm.Updatable(false), orm.DefaultFunc(orm.Now)),
	},
	Hooks: userHooks{},
})

var Blog = orm.MustDeclare(orm.Declaration{
	Type:  "Blog",
	Table: "blogs",
	Fields: []*orm.Field{
		orm.String("id", orm.PrimaryKey(), orm.DefaultFunc(orm.NextIDDefault), orm.DDL("varchar(50)")),
		orm.String("user_id", orm.Updatable(false), orm.DDL("varchar(50)"), orm.ForeignKey("users", "id")),
		orm.String("user_name", orm.DDL("varchar(50)")),
		orm.String("user_image", orm.DDL("varchar(500)")),
		orm.String("title", orm.DDL("varchar(50)")),
		orm.String("summary", orm.DDL("varchar(200)")),
		orm.Text("content"),
		orm.Float("created_at", orm.Updatable(false), orm.DefaultFunc(orm.Now)),
	},
})

var Comment = orm.MustDeclare(orm.Declaration{
	Type:  "Comment",
	Table: "comments",
	Fields: []*orm.Field{
		orm.String("id", orm.PrimaryKey(), orm.DefaultFunc(orm.NextIDDefault), orm.DDL("varchar(50)")),
		orm.String("blog_id", orm.Updatable(false), orm.DDL("varchar(50)"), orm.ForeignKey("blogs", "id")),
		orm.String("user_id", orm.Updatable(false), orm.DDL("varchar(50)"), orm.ForeignKey("users", "id")),
		orm.String("user_name", orm.DDL("varchar(50)")),
		orm.String("user_image", orm.DDL("varchar(500)")),
		orm.Text("content"),
		orm.Float("created_at", orm.Updatable(false), orm.DefaultFunc(orm.Now)),
		// comment being replied to
		orm.String("reply_to", orm.Nullable(), orm.Default(nil), orm.DDL("varchar(50)")),
	},
})

var Tag = orm.MustDeclare(orm.Declaration{
	Type:  "Tag",
	Table: "tags",
	Fields: []*orm.Field{
		orm.String("id", orm.PrimaryKey(), orm.DefaultFunc(orm.NextIDDefault), orm.DDL("varchar(50)")),
		orm.String("content", orm.DDL("varchar(50)")),
	},
})

var BlogTag = orm.MustDeclare(orm.Declaration{
	Type:  "BlogTag",
	Table: "blog_tags",
	Fields: []*orm.Field{
		orm.String("id", orm.PrimaryKey(), orm.DefaultFunc(orm.NextIDDefault), orm.DDL("varchar(50)")),
		orm.String("blog_id", orm.DDL("varchar(50)"), orm.ForeignKey("blogs", "id")),
		orm.String("tag_id", orm.DDL("varchar(50)"), orm.ForeignKey("tags", "id")),
	},
})

// All returns every schema in dependency order.
func All() []*orm.Schema {
	return []*orm.Schema{User, Blog, Comment, Tag, BlogTag}
}

// Registry returns a registry holding All.
func Registry() (*orm.Registry, error) {
	reg := orm.NewRegistry()
	if err := reg.Register(All()...); err != nil {
		return nil, err
	}
	return reg, nil
}

type userHooks struct{}

// BeforeInsert normalizes the email and rejects blank ones.
func (userHooks) BeforeInsert(_ context.Context, r *orm.Record) error {
	email := strings.ToLower(strings.TrimSpace(r.String("email")))
	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email %q", r.String("email"))
	}
	r.Set("email", email)
	return nil
}
