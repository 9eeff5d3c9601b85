package pgx

const upsertGraphSQL = `
INSERT INTO graphs (id, seeds, summary)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (id) DO UPDATE
SET seeds      = EXCLUDED.seeds,
    summary    = EXCLUDED.summary,
    updated_at = now();
`

const deleteEntitiesSQL = `DELETE FROM graph_entities WHERE graph_id = $1;`

const deleteEdgesSQL = `DELETE FROM graph_edges WHERE graph_id = $1;`

const deleteAliasesSQL = `DELETE FROM graph_aliases WHERE graph_id = $1;`

const insertEntitySQL = `
INSERT INTO graph_entities (graph_id, entity_id, name, type, confidence, attributes)
VALUES ($1, $2, $3, $4, $5, $6);
`

const insertEdgeSQL = `
INSERT INTO graph_edges (graph_id, source, target, kind, labels, evidence)
VALUES ($1, $2, $3, $4, $5, $6);
`

const insertAliasSQL = `
INSERT INTO graph_aliases (graph_id, identity, canonical)
VALUES ($1, $2, $3);
`

const graphExistsSQL = `SELECT id FROM graphs WHERE id = $1;`

const selectEntitiesSQL = `
SELECT entity_id, name, type, confidence, attributes
FROM graph_entities
WHERE graph_id = $1
ORDER BY entity_id;
`

const selectEdgesSQL = `
SELECT source, target, kind, labels, evidence
FROM graph_edges
WHERE graph_id = $1
ORDER BY source, target;
`

const selectAliasesSQL = `
SELECT identity, canonical
FROM graph_aliases
WHERE graph_id = $1;
`

const listGraphsSQL = `
SELECT g.id,
       g.seeds,
       g.summary,
       g.updated_at,
       (SELECT count(*) FROM graph_entities e WHERE e.graph_id = g.id)::int,
       (SELECT count(*) FROM graph_edges r WHERE r.graph_id = g.id)::int
FROM graphs g
ORDER BY g.id;
`

const deleteGraphSQL = `DELETE FROM graphs WHERE id = $1;`
