package sqlinline

const QInsertImage = `--sql 2d9b4f71-6e3a-4a8c-9c15-8b0e7d2f6a39
insert into images (id, original_url, filename, content_type, created_at)
values ($1::uuid, $2::text, nullif($3::text, ''), nullif($4::text, ''), now())
returning created_at;
`

const QSelectImageByID = `--sql 5f3c8a2e-9b7d-4e61-a0f4-3c2d1e9b8a76
select id::text, original_url, coalesce(filename, ''), coalesce(content_type, ''), created_at
from images
where id = $1::uuid;
`
