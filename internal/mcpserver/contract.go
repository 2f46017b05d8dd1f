package mcpserver

// OodleFormatContract describes the canonical oodle document format that
// LLM consumers should follow when reading or creating documents.
const OodleFormatContract = `# Oodle Document Format

An oodle is a titled, append-mostly thread of timestamped messages stored
in a single ` + "`" + `.oodle` + "`" + ` file.

## Structure

` + "```" + `
-= Document Title =-
[abc123]

2024-05-01 09:30:00+0000
First message content.
.

2024-05-01 10:15:00+0000
Second message,
spanning several lines.
.
` + "```" + `

## Rules

1. **Title line is mandatory.** First line, wrapped in ` + "`" + `-=` + "`" + ` and ` + "`" + `=-` + "`" + `.
2. **Identifier line** follows the title: the document's id in square
   brackets. Ids are 6 base58 characters; if the line is missing a random
   id is assigned on load.
3. **Messages** are preceded by a blank line, start with a dateline
   (` + "`" + `YYYY-MM-DD HH:MM:SS±ZZZZ` + "`" + `) and are terminated by a line holding a
   single period. A dateline may carry an index suffix like ` + "`" + ` (3)` + "`" + ` when
   message numbering jumps.
4. **Escaping:** a content line that is exactly ` + "`" + `.` + "`" + ` is stored as ` + "`" + `..` + "`" + `
   so it cannot terminate the message early.

## Citations

Inside message content:

- ` + "`" + `{abc123}` + "`" + ` cites the document with id ` + "`" + `abc123` + "`" + `.
- ` + "`" + `{abc123/4}` + "`" + ` cites message 4 of that document.
- ` + "`" + `{~4}` + "`" + ` cites message 4 of the document the message lives in.

Cited documents and messages accumulate backlinks, which the read_oodle
and get_backlinks tools expose.

## Creating documents

Use the ` + "`" + `create_oodle` + "`" + ` tool with a title, file name, and the first
message's content; the file name gets a ` + "`" + `.oodle` + "`" + ` extension if missing.
Never write the framing (title line, datelines, terminators) yourself:
tools take plain content and do the encoding.
`
