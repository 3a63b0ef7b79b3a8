package sqlinline

const QSelectJobWithImage = `--sql 0b6d4c5e-2f1a-4d8e-9a71-5c3e8f2b7d14
select
    j.id::text,
    j.image_id::text,
    j.status,
    j.room_type,
    j.style_preset,
    j.fix_white_balance,
    j.wall_decorations,
    j.progress_percent,
    coalesce(j.current_step, ''),
    coalesce(j.result_url, ''),
    coalesce(j.error_message, ''),
    j.started_at,
    j.completed_at,
    j.created_at,
    j.updated_at,
    i.id::text,
    i.original_url,
    coalesce(i.filename, ''),
    coalesce(i.content_type, ''),
    i.created_at
from jobs j
join images i on i.id = j.image_id
where j.id = $1::uuid;
`

const QSelectJobByID = `--sql 6a2f9e31-8c4b-4b0d-a6e2-1d7f3c9b5e08
select
    id::text,
    image_id::text,
    status,
    room_type,
    style_preset,
    fix_white_balance,
    wall_decorations,
    progress_percent,
    coalesce(current_step, ''),
    coalesce(result_url, ''),
    coalesce(error_message, ''),
    started_at,
    completed_at,
    created_at,
    updated_at
from jobs
where id = $1::uuid;
`

const QInsertJob = `--sql c4e1a7d2-5b3f-4e9a-8d60-2f7b1c8e4a93
insert into jobs (
    id,
    image_id,
    status,
    room_type,
    style_preset,
    fix_white_balance,
    wall_decorations,
    progress_percent,
    current_step,
    created_at,
    updated_at
)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, $6::boolean, $7::boolean, $8::double precision, nullif($9::text, ''), now(), now())
returning created_at, updated_at;
`

const QUpdateJob = `--sql 9e8d7c6b-1a2f-4c3d-b4e5-7f6a5b4c3d21
update jobs
set status = $2::text,
    progress_percent = $3::double precision,
    current_step = nullif($4::text, ''),
    result_url = nullif($5::text, ''),
    error_message = nullif($6::text, ''),
    started_at = coalesce(started_at, $7::timestamptz),
    completed_at = coalesce(completed_at, $8::timestamptz),
    updated_at = now()
where id = $1::uuid
returning updated_at;
`
