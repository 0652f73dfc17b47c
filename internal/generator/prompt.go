package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sqlquorum/sqlquorum/internal/describe"
	"github.com/sqlquorum/sqlquorum/internal/schema"
)

const systemPrompt = `You are an expert SQL analyst who explains their reasoning step by step. Each response is exactly one step of that reasoning.

For every step give a title describing what you are doing and the content of the step. Then decide whether another step is needed or whether you are ready to give the final answer. When the final answer is ready, write the SQL query in the final_sql field.

Guidelines:
1. Use as many reasoning steps as needed, at least 3.
2. Be aware of your limits as a language model and of what you can and cannot do.
3. Explore alternative answers. Consider that you may be wrong and where the error would be.
4. When you re-examine a step, actually try a different approach. Do not just repeat the earlier one.
5. Use only the tables, columns, keys and join conditions given to you.
6. For the highest or lowest value, use ORDER BY with LIMIT 1 rather than a MAX or MIN subquery.
7. Numbers stored as text may need INSTR or SUBSTR before they can be compared.
8. SELECT exactly the columns the question asks for and nothing else.
9. Never concatenate columns with || ' ' ||; return them as separate columns.
10. Write a single read-only SELECT statement for the final answer.

Respond in JSON with the keys "title", "content", "next_action" ("continue" or "final_answer") and, on the final step, "final_sql".

Example of a valid step:
{
    "title": "Identifying key information",
    "content": "To answer the question I first need the tables that hold the member names and their majors...",
    "next_action": "continue"
}

Example of a valid final step:
{
    "title": "Final query",
    "content": "Joining member to major on link_to_major and filtering by major name gives the answer.",
    "next_action": "final_answer",
    "final_sql": "SELECT T1.first_name FROM member AS T1 JOIN major AS T2 ON T1.link_to_major = T2.major_id WHERE T2.major_name = 'Business'"
}`

const primingReply = "Thank you! I will now think step by step following my instructions, starting at the beginning after decomposing the problem."

const finalRequest = "Please provide the final answer based on your reasoning above. Make sure to include the final SQL query in the 'final_sql' field."

type promptInput struct {
	Question     string
	Hint         string
	Focus        schema.Selection
	Descriptions describe.Descriptions
	PrimaryKeys  map[string][]string
	Joins        []string
}

func buildPrompt(in promptInput) (string, error) {
	focus, err := json.MarshalIndent(in.Focus, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal tables: %w", err)
	}
	descs, err := json.MarshalIndent(in.Descriptions, "", "    ")
	if err != nil {
		return "", fmt.Errorf("marshal descriptions: %w", err)
	}
	keys, err := json.Marshal(in.PrimaryKeys)
	if err != nil {
		return "", fmt.Errorf("marshal primary keys: %w", err)
	}
	joins := "none"
	if len(in.Joins) > 0 {
		joins = strings.Join(in.Joins, "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "QUESTION: %s\n", in.Question)
	fmt.Fprintf(&b, "HINT: %s\n", in.Hint)
	fmt.Fprintf(&b, "FILTER TABLE-COLUMN: %s\n", focus)
	fmt.Fprintf(&b, "COLUMN DESCRIPTION: %s\n", descs)
	fmt.Fprintf(&b, "PRIMARY KEYS: %s\n", keys)
	fmt.Fprintf(&b, "JOIN CONDITION:\n%s\n\n", joins)
	b.WriteString("Write a SQL query that answers the QUESTION using only the tables and columns above. ")
	b.WriteString("Follow the HINT where it defines terms or values. ")
	b.WriteString("Join tables only on the listed join conditions. ")
	b.WriteString("Prefer ORDER BY ... LIMIT 1 over MAX/MIN subqueries, select only what is asked, ")
	b.WriteString("and do not concatenate output columns.")
	return b.String(), nil
}
