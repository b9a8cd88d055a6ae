package mcpserver

// RecordFormatContract describes how folio records are addressed, stored and
// queried, for LLM consumers that create or update records.
const RecordFormatContract = `# Folio Record Format Contract

Every record stored in folio belongs to exactly one **type** and has an **id**
that is unique within that type.

## Structure

` + "```" + `json
{
  "id": "b7f3c1d2-5f7e-4d8a-9a61-0c1f0a3e2b44",
  "title": "Write release notes",
  "status": "open",
  "priority": 2,
  "owner": { "name": "dana" }
}
` + "```" + `

## Rules

1. **id is a string.** Omit it to get a generated UUID. Numbers are accepted
   but stored as their decimal text.
2. **type** names the collection (e.g. ` + "`" + `Task` + "`" + `, ` + "`" + `Project` + "`" + `). Use singular
   PascalCase English names.
3. **One record per file.** A record is replaced as a whole on every save;
   send every field you want to keep.
4. **Optimistic concurrency.** Pass the ` + "`" + `checksum` + "`" + ` returned by ` + "`" + `get_record` + "`" + `
   to ` + "`" + `save_record` + "`" + `; the save fails if someone changed the record since.
5. **Field names** are English, lower camel or snake case, and stable over time.
6. **Nested objects** are allowed and addressed with dotted paths in queries.

## Queries

- Filter clauses are comma separated and all must match:
  ` + "`" + `status=open` + "`" + `, ` + "`" + `status!=done` + "`" + `, ` + "`" + `title~*release*` + "`" + ` (glob), ` + "`" + `owner.name=dana` + "`" + `.
- Sort keys are comma separated; prefix ` + "`" + `-` + "`" + ` for descending:
  ` + "`" + `-priority,title` + "`" + `. Numbers sort numerically, missing fields first.

## Batches

Use ` + "`" + `save_records` + "`" + ` for many records of one type. Records that fail are
reported; the others stay saved.
`
